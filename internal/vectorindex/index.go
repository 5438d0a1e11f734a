// Package vectorindex implements C2: an append-only store of unit
// vectors supporting exact inner-product top-k search. Segments and
// presets share this single flat row space (spec.md §3 "Row namespace").
package vectorindex

import (
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/floats"

	hierrors "github.com/jpdrecourt/hibikido-go/internal/errors"
)

// Hit is one result of a top-k search: a row and its inner-product score.
type Hit struct {
	Row   int
	Score float32
}

// Index is an append-only collection of unit vectors keyed by a
// monotonically increasing row id starting at 0. It never deletes rows;
// logical deletion is the document store's concern (spec.md §4.2).
type Index struct {
	mu         sync.RWMutex
	dimensions int
	vectors    [][]float64
	closed     bool
}

// New creates an empty index for vectors of the given dimensionality.
func New(dimensions int) *Index {
	return &Index{dimensions: dimensions}
}

// Dimensions returns the fixed vector width this index was created with.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Add appends vector and returns its assigned row.
func (idx *Index) Add(vector []float32) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return 0, hierrors.IndexError("index is closed", nil)
	}
	if len(vector) != idx.dimensions {
		return 0, hierrors.ValidationError("vector dimension mismatch", nil).
			WithDetail("expected", strconv.Itoa(idx.dimensions)).
			WithDetail("got", strconv.Itoa(len(vector)))
	}

	row := len(idx.vectors)
	v64 := make([]float64, len(vector))
	for i, x := range vector {
		v64[i] = float64(x)
	}
	idx.vectors = append(idx.vectors, v64)
	return row, nil
}

// Search returns the top-k (row, score) pairs ranked by descending inner
// product, ties broken by lower row id, per spec.md §4.2.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, hierrors.IndexError("index is closed", nil)
	}
	if len(query) != idx.dimensions {
		return nil, hierrors.ValidationError("query dimension mismatch", nil)
	}
	if k <= 0 || len(idx.vectors) == 0 {
		return []Hit{}, nil
	}

	q64 := make([]float64, len(query))
	for i, x := range query {
		q64[i] = float64(x)
	}

	hits := make([]Hit, len(idx.vectors))
	for row, v := range idx.vectors {
		hits[row] = Hit{Row: row, Score: float32(floats.Dot(q64, v))}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of vectors currently stored.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Close releases the index. A closed index rejects further Add/Search calls.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.vectors = nil
	return nil
}

// Reset drops all vectors, used by RebuildIndex (C5) before re-embedding.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = idx.vectors[:0]
}
