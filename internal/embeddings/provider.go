package embeddings

import "fmt"

// ProviderConfig selects and configures an Embedder implementation. The
// factory shape (name-keyed construction with clamped defaults) is kept
// from the teacher's embedding-provider factory.
type ProviderConfig struct {
	// Provider selects the implementation: "hash" (default, deterministic)
	// or "langchain" (delegates to an LlmProvider-style HTTP embedding
	// endpoint; see internal/consolidation for the same langchaingo
	// dependency used there).
	Provider string
	// Dimension is the fixed vector dimension. Defaults to 256.
	Dimension int
}

// NewFromConfig constructs an Embedder per cfg.
func NewFromConfig(cfg ProviderConfig) (Embedder, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 256
	}
	switch cfg.Provider {
	case "", "hash":
		return NewHashEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
