package hooks

// Config tunes the confidence thresholds and feature gates shared by the
// hook handlers. Populated from config.Config.Features at wiring time;
// hooks never read the environment directly.
type Config struct {
	// CaptureConfidenceThreshold is the minimum keyword-match confidence
	// for UserPromptSubmit to surface a capture suggestion (spec.md §4.12).
	CaptureConfidenceThreshold float32

	// SearchIntentThreshold is the minimum confidence for UserPromptSubmit
	// to surface a search-intent suggestion.
	SearchIntentThreshold float32

	// PreCompactConfidenceThreshold is the minimum confidence for a
	// PreCompact capture candidate to be auto-captured.
	PreCompactConfidenceThreshold float32

	// UseLLMAnalysis enables the LLM fallback classifier for PreCompact
	// paragraphs that didn't match any keyword family
	// (SUBCOG_AUTO_CAPTURE_USE_LLM, spec.md §6.3).
	UseLLMAnalysis bool

	// RecallLimit bounds how many memories UserPromptSubmit surfaces for a
	// detected search intent.
	RecallLimit int
}

// DefaultConfig mirrors the thresholds carried over from the prior
// implementation: 0.6 for capture confidence, 0.5 for search intent.
func DefaultConfig() Config {
	return Config{
		CaptureConfidenceThreshold:    0.6,
		SearchIntentThreshold:         0.5,
		PreCompactConfidenceThreshold: 0.6,
		UseLLMAnalysis:                false,
		RecallLimit:                   5,
	}
}
