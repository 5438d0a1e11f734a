package embedding

// New builds the configured embedder. Spec.md §4.1 treats the model as an
// opaque external collaborator; only the deterministic static provider is
// implemented here; a real model-backed provider (Ollama, a local ONNX
// model, etc.) would be added here behind the same Embedder interface
// without touching any caller.
func New(modelName string) Embedder {
	return NewCachedEmbedder(NewStaticEmbedder(), DefaultCacheSize)
}
