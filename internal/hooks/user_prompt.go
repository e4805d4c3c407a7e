package hooks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/recall"
)

// CaptureSignal is a detected memory-capture opportunity in a submitted
// prompt (spec.md §4.12).
type CaptureSignal struct {
	Namespace       model.Namespace
	Confidence      float32
	MatchedPatterns []string
	Explicit        bool
}

// UserPromptHandler implements the UserPromptSubmit hook: it scans the
// prompt for capture signals and search intent, and (when a recall
// service is wired) surfaces relevant memories as context.
type UserPromptHandler struct {
	cfg    Config
	recall *recall.Service
	logger *zap.Logger
}

// UserPromptOption configures optional UserPromptHandler fields.
type UserPromptOption func(*UserPromptHandler)

func WithUserPromptLogger(l *zap.Logger) UserPromptOption {
	return func(h *UserPromptHandler) { h.logger = l }
}

// NewUserPromptHandler constructs a handler. recall may be nil, in which
// case detected search intent is reported but no memories are surfaced.
func NewUserPromptHandler(cfg Config, recallSvc *recall.Service, opts ...UserPromptOption) *UserPromptHandler {
	h := &UserPromptHandler{cfg: cfg, recall: recallSvc, logger: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *UserPromptHandler) EventType() EventType { return EventUserPromptSubmit }

type userPromptInput struct {
	Prompt string `json:"prompt"`
}

// Handle implements Handler.
func (h *UserPromptHandler) Handle(input string) (string, error) {
	var in userPromptInput
	decode(input, &in)

	metadata := map[string]interface{}{}

	if in.Prompt == "" {
		metadata["signals"] = []CaptureSignal{}
		metadata["should_capture"] = false
		return encode(Response{Continue: true, Metadata: metadata})
	}

	signals := h.detectSignals(in.Prompt)
	shouldCapture := false
	for _, s := range signals {
		if s.Confidence >= h.cfg.CaptureConfidenceThreshold {
			shouldCapture = true
			break
		}
	}

	signalsJSON := make([]map[string]interface{}, 0, len(signals))
	for _, s := range signals {
		signalsJSON = append(signalsJSON, map[string]interface{}{
			"namespace":        string(s.Namespace),
			"confidence":       s.Confidence,
			"matched_patterns": s.MatchedPatterns,
			"is_explicit":      s.Explicit,
		})
	}
	metadata["signals"] = signalsJSON
	metadata["should_capture"] = shouldCapture
	metadata["confidence_threshold"] = h.cfg.CaptureConfidenceThreshold

	var captureText string
	if shouldCapture {
		content := h.extractContent(in.Prompt)
		captureText = buildCaptureContext(signals[0], content, metadata)
	}

	var searchText string
	if intent, ok := detectSearchIntent(in.Prompt); ok && intent.Confidence >= h.cfg.SearchIntentThreshold {
		searchText = h.buildSearchIntentContext(intent, metadata)
	} else {
		metadata["search_intent"] = map[string]interface{}{"detected": false}
	}

	combined := combineContext(captureText, searchText)
	resp := Response{Continue: true, Metadata: metadata}
	if combined != "" {
		resp.Context = combined
	}
	return encode(resp)
}

// detectSignals checks the explicit capture command first, then every
// namespace's keyword family, sorted by descending confidence.
func (h *UserPromptHandler) detectSignals(prompt string) []CaptureSignal {
	if captureCommand.MatchString(prompt) {
		return []CaptureSignal{{
			Namespace:       model.NamespaceDecisions,
			Confidence:      1.0,
			MatchedPatterns: []string{"explicit_command"},
			Explicit:        true,
		}}
	}

	var signals []CaptureSignal
	signals = appendFamilySignal(signals, decisionPatterns, model.NamespaceDecisions, prompt, h.cfg.CaptureConfidenceThreshold)
	signals = appendFamilySignal(signals, patternPatterns, model.NamespacePatterns, prompt, h.cfg.CaptureConfidenceThreshold)
	signals = appendFamilySignal(signals, learningPatterns, model.NamespaceLearnings, prompt, h.cfg.CaptureConfidenceThreshold)
	signals = appendFamilySignal(signals, blockerPatterns, model.NamespaceBlockers, prompt, h.cfg.CaptureConfidenceThreshold)
	signals = appendFamilySignal(signals, techDebtPatterns, model.NamespaceTechDebt, prompt, h.cfg.CaptureConfidenceThreshold)

	sortSignalsByConfidence(signals)
	return signals
}

func appendFamilySignal(signals []CaptureSignal, family []*regexp.Regexp, ns model.Namespace, prompt string, threshold float32) []CaptureSignal {
	matched := matchPatterns(family, prompt)
	if len(matched) == 0 {
		return signals
	}
	confidence := promptConfidence(matched, prompt)
	if confidence < threshold {
		return signals
	}
	return append(signals, CaptureSignal{Namespace: ns, Confidence: confidence, MatchedPatterns: matched})
}

func sortSignalsByConfidence(signals []CaptureSignal) {
	for i := 1; i < len(signals); i++ {
		for j := i; j > 0 && signals[j].Confidence > signals[j-1].Confidence; j-- {
			signals[j], signals[j-1] = signals[j-1], signals[j]
		}
	}
}

// promptConfidence mirrors original_source's calculate_confidence: a base
// score plus bonuses for match count, prompt length and punctuation.
func promptConfidence(matched []string, prompt string) float32 {
	const base = 0.5
	matchBonus := float32(len(matched)) * 0.1
	if matchBonus > 0.15 {
		matchBonus = 0.15
	}
	var lengthFactor, sentenceFactor float32
	if len(prompt) > 50 {
		lengthFactor = 0.1
	}
	if strings.ContainsAny(prompt, ".!?") {
		sentenceFactor = 0.1
	}
	conf := base + matchBonus + lengthFactor + sentenceFactor
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// extractContent strips an explicit capture command prefix and leading
// punctuation from prompt, leaving the content worth capturing.
func (h *UserPromptHandler) extractContent(prompt string) string {
	content := captureCommand.ReplaceAllString(prompt, "")
	content = strings.TrimSpace(content)
	content = strings.TrimLeft(content, ":- ")
	return strings.TrimSpace(content)
}

func buildCaptureContext(top CaptureSignal, content string, metadata map[string]interface{}) string {
	if content == "" {
		return ""
	}
	metadata["capture_suggestion"] = map[string]interface{}{
		"namespace":       string(top.Namespace),
		"content_preview": truncate(content, 100),
		"confidence":      top.Confidence,
	}

	var b strings.Builder
	b.WriteString("**Subcog Capture Suggestion**\n\n")
	if top.Explicit {
		fmt.Fprintf(&b, "Explicit capture command detected. Capturing to `%s`:\n\n", top.Namespace)
		fmt.Fprintf(&b, "> %s\n\n", truncate(content, 200))
		b.WriteString("Use the `subcog_capture` tool to save this memory.")
	} else {
		fmt.Fprintf(&b, "Detected %s signal (confidence: %.0f%%):\n\n", top.Namespace, top.Confidence*100)
		fmt.Fprintf(&b, "> %s\n\n", truncate(content, 200))
		fmt.Fprintf(&b, "**Suggestion**: Consider capturing this as a `%s` memory.\n", top.Namespace)
		b.WriteString("Use the `subcog_capture` tool or ask: \"Should I save this to subcog?\"")
	}
	return b.String()
}

// buildSearchIntentContext records intent in metadata and, when a recall
// service is wired, surfaces up to cfg.RecallLimit relevant memories.
func (h *UserPromptHandler) buildSearchIntentContext(intent SearchIntent, metadata map[string]interface{}) string {
	metadata["search_intent"] = map[string]interface{}{
		"detected":    true,
		"intent_type": string(intent.Type),
		"confidence":  intent.Confidence,
		"topics":      intent.Topics,
		"keywords":    intent.Keywords,
	}

	if h.recall == nil || len(intent.Topics) == 0 {
		return ""
	}

	query := strings.Join(intent.Topics, " ")
	limit := h.cfg.RecallLimit
	if limit <= 0 {
		limit = 5
	}
	result, err := h.recall.Search(context.Background(), query, recall.ModeHybrid, model.SearchFilter{}, limit)
	if err != nil {
		h.logger.Warn("user_prompt: memory context search failed", zap.Error(err))
		return ""
	}
	if len(result.Memories) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Subcog Memory Context**\n\n")
	fmt.Fprintf(&b, "Intent type: **%s**\n\n", intent.Type)
	if len(intent.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n\n", strings.Join(intent.Topics, ", "))
	}
	b.WriteString("**Relevant memories**:\n")
	for _, hit := range result.Memories {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", hit.Memory.Namespace, hit.Memory.ID, truncate(hit.Memory.Content, 80))
	}
	return b.String()
}

func combineContext(capture, search string) string {
	switch {
	case capture != "" && search != "":
		return capture + "\n\n---\n\n" + search
	case capture != "":
		return capture
	default:
		return search
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
