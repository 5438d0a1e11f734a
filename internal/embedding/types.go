// Package embedding provides the text -> unit-vector collaborator (C1).
// Spec.md treats the embedding model as an opaque, deterministic
// black box; this package owns only the interface and the deterministic
// static provider used to make the rest of the system runnable and
// testable without a network model.
package embedding

import "context"

// Dimensions is the fixed embedding width spec.md §1 wires at startup.
const Dimensions = 384

// Embedder turns text into an L2-normalized unit vector of Dimensions
// floats. Implementations must be deterministic: the same input text
// always yields the same output vector within a run.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}
