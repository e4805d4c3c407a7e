package hooks

import (
	"context"

	"github.com/zircote/subcog/internal/consolidation"
	"github.com/zircote/subcog/internal/model"
)

// LangchainClassifier adapts consolidation.LangchainProvider to
// CaptureClassifier, reusing the same langchaingo chat client the
// consolidation service uses for summarization (spec.md §4.12's LLM
// fallback path).
type LangchainClassifier struct {
	Provider *consolidation.LangchainProvider
}

func (c LangchainClassifier) ClassifyForCapture(ctx context.Context, text string) (ClassificationResult, error) {
	result, err := c.Provider.ClassifyForCapture(ctx, text)
	if err != nil {
		return ClassificationResult{}, err
	}
	return ClassificationResult{
		ShouldCapture: result.ShouldCapture,
		Namespace:     model.Namespace(result.Namespace),
		Confidence:    result.Confidence,
		Reasoning:     result.Reasoning,
	}, nil
}
