package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zircote/subcog/internal/model"
)

// LangchainProvider implements LlmProvider over github.com/tmc/langchaingo,
// the same HTTP LLM client library the teacher project uses for embeddings
// (pkg/embeddings/service.go), here pointed at a chat-completion model
// instead of an embedding endpoint.
type LangchainProvider struct {
	llm    llms.Model
	prompt string
}

// LangchainConfig configures a LangchainProvider.
type LangchainConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

// NewLangchainProvider constructs an LlmProvider backed by an
// OpenAI-compatible chat endpoint (works against OpenAI itself, or any
// compatible local server).
func NewLangchainProvider(cfg LangchainConfig) (*LangchainProvider, error) {
	opts := []openai.Option{}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	key := cfg.APIKey
	if key == "" {
		key = "placeholder"
	}
	opts = append(opts, openai.WithToken(key))

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("consolidation: constructing llm client: %w", err)
	}
	return &LangchainProvider{llm: model}, nil
}

const summarizePromptTemplate = `You are consolidating related memories captured by a coding assistant.
Summarize the following memories into a single, concise statement that
preserves their shared insight. Flag any direct contradictions between
them. Respond as JSON: {"content": "...", "tags": ["..."], "contradictions_detected": 0}.

Memories:
%s`

// Summarize sends the group's contents to the chat model and parses its
// structured JSON response (spec.md §4.10 step 1).
func (p *LangchainProvider) Summarize(ctx context.Context, group []model.Memory) (SummaryResult, error) {
	var b strings.Builder
	for i, m := range group {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, m.Namespace, m.Content)
	}
	prompt := fmt.Sprintf(summarizePromptTemplate, b.String())

	completion, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("consolidation: llm call failed: %w", err)
	}

	var parsed struct {
		Content                string   `json:"content"`
		Tags                   []string `json:"tags"`
		ContradictionsDetected int      `json:"contradictions_detected"`
	}
	if err := json.Unmarshal([]byte(extractJSON(completion)), &parsed); err != nil {
		// Degrade to using the raw completion as content rather than
		// failing the whole consolidation pass over a formatting slip.
		return SummaryResult{Content: strings.TrimSpace(completion)}, nil
	}
	return SummaryResult{
		Content:                parsed.Content,
		Tags:                   parsed.Tags,
		ContradictionsDetected: parsed.ContradictionsDetected,
	}, nil
}

const classifyPromptTemplate = `Decide whether the following text, excerpted from a coding assistant's
conversation, is worth persisting as a memory. Respond as JSON:
{"should_capture": bool, "suggested_namespace": "decisions|patterns|learnings|blockers|tech-debt|context",
"confidence": 0.0-1.0, "reasoning": "..."}.

Text:
%s`

// ClassificationResult is the verdict ClassifyForCapture returns; the hooks
// package adapts it to its own ClassificationResult shape.
type ClassificationResult struct {
	ShouldCapture bool
	Namespace     string
	Confidence    float32
	Reasoning     string
}

// ClassifyForCapture asks the chat model whether text is worth an
// auto-capture, for the PreCompact hook's LLM fallback path (spec.md
// §4.12, SUBCOG_AUTO_CAPTURE_USE_LLM).
func (p *LangchainProvider) ClassifyForCapture(ctx context.Context, text string) (ClassificationResult, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, text)
	completion, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt)
	if err != nil {
		return ClassificationResult{}, fmt.Errorf("consolidation: llm classification call failed: %w", err)
	}

	var parsed struct {
		ShouldCapture      bool    `json:"should_capture"`
		SuggestedNamespace string  `json:"suggested_namespace"`
		Confidence         float32 `json:"confidence"`
		Reasoning          string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(completion)), &parsed); err != nil {
		return ClassificationResult{}, fmt.Errorf("consolidation: parsing classification response: %w", err)
	}
	return ClassificationResult{
		ShouldCapture: parsed.ShouldCapture,
		Namespace:     parsed.SuggestedNamespace,
		Confidence:    parsed.Confidence,
		Reasoning:     parsed.Reasoning,
	}, nil
}

// extractJSON trims any leading/trailing prose a chat model adds around
// the JSON object it was asked to return.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
