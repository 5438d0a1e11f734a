package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	hierrors "github.com/jpdrecourt/hibikido-go/internal/errors"
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Weights for the hashed bag-of-tokens/bag-of-trigrams blend. Tokens carry
// most of the signal; character trigrams give near-miss spellings some
// overlap instead of landing in unrelated buckets.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder is a deterministic hash-based embedder: no network, no
// model download, always available. It stands in for the black-box
// sentence-embedding model spec.md §4.1 specifies as an external
// collaborator — every other component only depends on the Embedder
// interface, so swapping in a real model is a one-line change at
// construction time.
type StaticEmbedder struct{}

// NewStaticEmbedder constructs the default embedding provider.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) Dimensions() int   { return Dimensions }
func (e *StaticEmbedder) ModelName() string { return "static-384" }

// Embed implements Embedder. It never fails except via context
// cancellation, matching spec.md's "fails only with model unavailable"
// contract — the static model is never unavailable.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, hierrors.EmbeddingError("context cancelled", ctx.Err())
	default:
	}

	trimmed := strings.TrimSpace(text)
	vec := make([]float64, Dimensions)
	if trimmed == "" {
		out := make([]float32, Dimensions)
		return out, nil
	}

	tokens := tokenRegex.FindAllString(strings.ToLower(trimmed), -1)
	for _, tok := range tokens {
		vec[hashToIndex(tok, Dimensions)] += tokenWeight
		for _, gram := range trigrams(tok) {
			vec[hashToIndex(gram, Dimensions)] += ngramWeight
		}
	}

	return normalize(vec), nil
}

func trigrams(token string) []string {
	if len(token) < ngramSize {
		return []string{token}
	}
	grams := make([]string, 0, len(token)-ngramSize+1)
	for i := 0; i+ngramSize <= len(token); i++ {
		grams = append(grams, token[i:i+ngramSize])
	}
	return grams
}

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

func normalize(v []float64) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	out := make([]float32, len(v))
	if sumSq == 0 {
		return out
	}
	inv := 1.0 / math.Sqrt(sumSq)
	for i, x := range v {
		out[i] = float32(x * inv)
	}
	return out
}
