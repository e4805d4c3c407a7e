package hooks

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/model"
)

// minSectionLength is the minimum paragraph length considered for capture
// (original_source src/hooks/pre_compact/mod.rs: MIN_SECTION_LENGTH).
const minSectionLength = 20

// fingerprintLength bounds how much of a candidate's normalized content is
// compared when deduplicating candidates within a single PreCompact batch.
const fingerprintLength = 50

// ConversationSection is one turn of the conversation excerpt PreCompact
// receives.
type ConversationSection struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type preCompactInput struct {
	Context  string                 `json:"context"`
	Sections []ConversationSection `json:"sections"`
}

// CaptureCandidate is a paragraph PreCompact proposes to capture.
type CaptureCandidate struct {
	Content    string
	Namespace  model.Namespace
	Confidence float32
}

// ClassificationResult is what a CaptureClassifier returns for one
// paragraph that didn't match any keyword family.
type ClassificationResult struct {
	ShouldCapture bool
	Namespace     model.Namespace
	Confidence    float32
	Reasoning     string
}

// CaptureClassifier is the LLM fallback PreCompact consults when keyword
// detection finds nothing and UseLLMAnalysis is enabled (spec.md §4.12,
// SUBCOG_AUTO_CAPTURE_USE_LLM).
type CaptureClassifier interface {
	ClassifyForCapture(ctx context.Context, text string) (ClassificationResult, error)
}

// PreCompactHandler implements the PreCompact hook: it analyzes a
// conversation excerpt about to be compacted, proposes capture candidates
// from keyword families (falling back to an LLM classifier when enabled),
// and captures them through capture.Service, which applies the same dedup
// engine every other capture path uses.
type PreCompactHandler struct {
	cfg        Config
	capture    *capture.Service
	domain     model.Domain
	classifier CaptureClassifier
	logger     *zap.Logger
}

// PreCompactOption configures optional PreCompactHandler fields.
type PreCompactOption func(*PreCompactHandler)

func WithCaptureClassifier(c CaptureClassifier) PreCompactOption {
	return func(h *PreCompactHandler) { h.classifier = c }
}

func WithPreCompactLogger(l *zap.Logger) PreCompactOption {
	return func(h *PreCompactHandler) { h.logger = l }
}

// NewPreCompactHandler constructs a handler. domain scopes every memory it
// captures.
func NewPreCompactHandler(cfg Config, captureSvc *capture.Service, domain model.Domain, opts ...PreCompactOption) *PreCompactHandler {
	h := &PreCompactHandler{cfg: cfg, capture: captureSvc, domain: domain, logger: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *PreCompactHandler) EventType() EventType { return EventPreCompact }

// Handle implements Handler.
func (h *PreCompactHandler) Handle(input string) (string, error) {
	var in preCompactInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		in = preCompactInput{Context: input}
	}

	ctx := context.Background()
	candidates := h.analyzeContent(ctx, in)
	candidates = dedupeCandidates(candidates)

	type captured struct {
		MemoryID  string `json:"memory_id"`
		Namespace string `json:"namespace"`
		URN       string `json:"urn"`
	}
	type skipped struct {
		Namespace string `json:"namespace"`
		Reason    string `json:"reason"`
	}

	var capturedList []captured
	var skippedList []skipped

	for _, c := range candidates {
		if c.Confidence < h.cfg.PreCompactConfidenceThreshold {
			continue
		}
		if h.capture == nil {
			continue
		}
		result, err := h.capture.Capture(ctx, capture.Request{
			Content:   c.Content,
			Namespace: c.Namespace,
			Domain:    h.domain,
			Source:    "pre_compact_auto_capture",
		})
		if err != nil {
			h.logger.Warn("pre_compact: capture failed", zap.Error(err), zap.String("namespace", string(c.Namespace)))
			continue
		}
		if result.Duplicate {
			skippedList = append(skippedList, skipped{
				Namespace: string(c.Namespace),
				Reason:    string(result.DuplicateReason),
			})
			continue
		}
		capturedList = append(capturedList, captured{
			MemoryID:  result.MemoryID,
			Namespace: string(c.Namespace),
			URN:       result.URN,
		})
	}

	metadata := map[string]interface{}{
		"captured":       capturedList,
		"skipped":        skippedList,
		"captured_count": len(capturedList),
		"skipped_count":  len(skippedList),
	}
	return encode(Response{Continue: true, Metadata: metadata})
}

// analyzeContent extracts capture candidates from the full context and
// from assistant-authored sections (original_source's analyze_content).
func (h *PreCompactHandler) analyzeContent(ctx context.Context, in preCompactInput) []CaptureCandidate {
	var candidates []CaptureCandidate
	if in.Context != "" {
		candidates = append(candidates, h.extractFromText(ctx, in.Context)...)
	}
	for _, section := range in.Sections {
		if section.Role == "assistant" || section.Role == "" {
			candidates = append(candidates, h.extractFromText(ctx, section.Content)...)
		}
	}
	return candidates
}

// extractFromText splits text into paragraphs and classifies each against
// the keyword families in priority order, falling back to the LLM
// classifier (if wired and enabled) for paragraphs that matched nothing.
func (h *PreCompactHandler) extractFromText(ctx context.Context, text string) []CaptureCandidate {
	var candidates []CaptureCandidate
	for _, para := range strings.Split(text, "\n\n") {
		section := strings.TrimSpace(para)
		if len(section) < minSectionLength {
			continue
		}

		switch {
		case len(matchPatterns(decisionPatterns, section)) > 0:
			candidates = append(candidates, CaptureCandidate{section, model.NamespaceDecisions, sectionConfidence(section)})
		case len(matchPatterns(learningPatterns, section)) > 0:
			candidates = append(candidates, CaptureCandidate{section, model.NamespaceLearnings, sectionConfidence(section)})
		case len(matchPatterns(blockerPatterns, section)) > 0:
			candidates = append(candidates, CaptureCandidate{section, model.NamespaceBlockers, sectionConfidence(section)})
		case len(matchPatterns(patternPatterns, section)) > 0:
			candidates = append(candidates, CaptureCandidate{section, model.NamespacePatterns, sectionConfidence(section)})
		case len(matchPatterns(contextPatterns, section)) > 0:
			candidates = append(candidates, CaptureCandidate{section, model.NamespaceContext, sectionConfidence(section)})
		case h.cfg.UseLLMAnalysis && h.classifier != nil:
			if c, ok := h.classifyWithLLM(ctx, section); ok {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// classifyWithLLM consults the LLM classifier for a paragraph that matched
// no keyword family; failures or low-confidence verdicts are skipped
// rather than propagated, since PreCompact must never fail the compaction
// it's attached to.
func (h *PreCompactHandler) classifyWithLLM(ctx context.Context, section string) (CaptureCandidate, bool) {
	result, err := h.classifier.ClassifyForCapture(ctx, section)
	if err != nil {
		h.logger.Warn("pre_compact: llm classification failed", zap.Error(err))
		return CaptureCandidate{}, false
	}
	if !result.ShouldCapture || result.Confidence <= 0.6 {
		return CaptureCandidate{}, false
	}
	namespace := result.Namespace
	if namespace == "" || !namespace.Valid() {
		namespace = model.NamespaceContext
	}
	return CaptureCandidate{Content: section, Namespace: namespace, Confidence: result.Confidence}, true
}

// sectionConfidence scores a matched paragraph by length and punctuation
// density (original_source's calculate_section_confidence).
func sectionConfidence(section string) float32 {
	const base float32 = 0.65
	var lengthBonus float32
	if len(section) > 100 {
		lengthBonus = 0.15
	} else if len(section) > minSectionLength {
		lengthBonus = 0.05
	}
	conf := base + lengthBonus
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// dedupeCandidates drops candidates within the same batch whose first
// fingerprintLength normalized characters collide, keeping the
// highest-confidence one (original_source's analyzer::deduplicate_candidates).
func dedupeCandidates(candidates []CaptureCandidate) []CaptureCandidate {
	seen := make(map[string]int) // fingerprint -> index in out
	out := make([]CaptureCandidate, 0, len(candidates))
	for _, c := range candidates {
		fp := fingerprint(c.Content)
		if idx, ok := seen[fp]; ok {
			if c.Confidence > out[idx].Confidence {
				out[idx] = c
			}
			continue
		}
		seen[fp] = len(out)
		out = append(out, c)
	}
	return out
}

func fingerprint(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	if len(normalized) > fingerprintLength {
		return normalized[:fingerprintLength]
	}
	return normalized
}
