package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_AddAssignsSequentialRows(t *testing.T) {
	// Given: an empty index
	idx := New(4)

	// When: three vectors are added
	r0, err := idx.Add([]float32{1, 0, 0, 0})
	require.NoError(t, err)
	r1, err := idx.Add([]float32{0, 1, 0, 0})
	require.NoError(t, err)
	r2, err := idx.Add([]float32{0, 0, 1, 0})
	require.NoError(t, err)

	// Then: rows are assigned 0, 1, 2 in order
	assert.Equal(t, 0, r0)
	assert.Equal(t, 1, r1)
	assert.Equal(t, 2, r2)
	assert.Equal(t, 3, idx.Size())
}

func TestIndex_SearchOrdersByDescendingScore(t *testing.T) {
	// Given: vectors a (exact match candidate), b (orthogonal), c (close)
	idx := New(4)
	_, _ = idx.Add([]float32{1, 0, 0, 0})    // row 0: a
	_, _ = idx.Add([]float32{0, 1, 0, 0})    // row 1: b
	_, _ = idx.Add([]float32{0.9, 0.1, 0, 0}) // row 2: c

	// When: searching for [1,0,0,0] with k=2
	hits, err := idx.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	// Then: a (row 0) ranks first with score ~1, c (row 2) ranks second
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Row)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 2, hits[1].Row)
}

func TestIndex_SearchTiesBreakByLowerRow(t *testing.T) {
	// Given: two identical vectors at rows 0 and 1
	idx := New(2)
	_, _ = idx.Add([]float32{1, 0})
	_, _ = idx.Add([]float32{1, 0})

	// When: searching with a query that ties both
	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)

	// Then: row 0 comes before row 1
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Row)
	assert.Equal(t, 1, hits[1].Row)
}

func TestIndex_SearchTopKZero(t *testing.T) {
	idx := New(2)
	_, _ = idx.Add([]float32{1, 0})
	hits, err := idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	// Given: an index with vectors, saved to a temp path
	idx := New(3)
	_, _ = idx.Add([]float32{1, 0, 0})
	_, _ = idx.Add([]float32{0, 1, 0})

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, idx.Save(path))

	// When: loading into a fresh index
	loaded := New(3)
	require.NoError(t, loaded.Load(path))

	// Then: size and search results match the original
	assert.Equal(t, idx.Size(), loaded.Size())
	hits, err := loaded.Search([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Row)
}

func TestIndex_LoadMissingFileIsNoop(t *testing.T) {
	idx := New(3)
	err := idx.Load(filepath.Join(t.TempDir(), "does-not-exist.gob"))
	assert.NoError(t, err)
	assert.Equal(t, 0, idx.Size())
}

func TestIndex_DimensionMismatchRejected(t *testing.T) {
	idx := New(3)
	_, err := idx.Add([]float32{1, 0})
	assert.Error(t, err)
}
