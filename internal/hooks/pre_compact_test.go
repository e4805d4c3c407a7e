package hooks

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/dedup"
	"github.com/zircote/subcog/internal/model"
)

func newTestCaptureService() (*capture.Service, *fakePersistence, *fakeIndex) {
	persist := newFakePersistence()
	idx := newFakeIndex()
	dd := dedup.New(dedup.DefaultConfig(), persist, nil, nil)
	svc := capture.New(capture.Config{}, persist, idx, nil, nil, dd)
	return svc, persist, idx
}

func TestPreCompactHandlerCapturesDecisionParagraph(t *testing.T) {
	svc, _, _ := newTestCaptureService()
	h := NewPreCompactHandler(DefaultConfig(), svc, fakeDomain())

	input := preCompactInput{
		Context: "We decided to use RRF fusion with k=60 for combining lexical and vector search results across the board.",
	}
	raw, _ := json.Marshal(input)

	out, err := h.Handle(string(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Metadata["captured_count"].(float64) != 1 {
		t.Fatalf("captured_count = %v, want 1", resp.Metadata["captured_count"])
	}
}

func TestPreCompactHandlerSkipsShortParagraphs(t *testing.T) {
	svc, _, _ := newTestCaptureService()
	h := NewPreCompactHandler(DefaultConfig(), svc, fakeDomain())

	input := preCompactInput{Context: "We decided X."}
	raw, _ := json.Marshal(input)

	out, err := h.Handle(string(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp Response
	json.Unmarshal([]byte(out), &resp)
	if resp.Metadata["captured_count"].(float64) != 0 {
		t.Fatalf("captured_count = %v, want 0 for a too-short paragraph", resp.Metadata["captured_count"])
	}
}

func TestPreCompactHandlerReportsExactDuplicateSkip(t *testing.T) {
	svc, persist, _ := newTestCaptureService()
	content := "We decided to use RRF fusion with k=60 for combining lexical and vector search results across the board."
	persist.records["existing"] = model.Memory{
		ID:        "existing",
		Content:   content,
		Namespace: model.NamespaceDecisions,
		Domain:    fakeDomain(),
		Status:    model.StatusActive,
		CreatedAt: 1,
		UpdatedAt: 1,
	}

	h := NewPreCompactHandler(DefaultConfig(), svc, fakeDomain())
	input := preCompactInput{Context: content}
	raw, _ := json.Marshal(input)

	out, err := h.Handle(string(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp Response
	json.Unmarshal([]byte(out), &resp)
	if resp.Metadata["captured_count"].(float64) != 0 {
		t.Fatalf("captured_count = %v, want 0 for an exact duplicate", resp.Metadata["captured_count"])
	}
	if resp.Metadata["skipped_count"].(float64) != 1 {
		t.Fatalf("skipped_count = %v, want 1", resp.Metadata["skipped_count"])
	}
	skipped := resp.Metadata["skipped"].([]interface{})[0].(map[string]interface{})
	if skipped["reason"] != string(dedup.VariantExactMatch) {
		t.Errorf("reason = %v, want %s", skipped["reason"], dedup.VariantExactMatch)
	}
}

func TestPreCompactHandlerAssistantSectionsOnly(t *testing.T) {
	svc, _, _ := newTestCaptureService()
	h := NewPreCompactHandler(DefaultConfig(), svc, fakeDomain())

	input := preCompactInput{
		Sections: []ConversationSection{
			{Role: "user", Content: "We decided to use RRF fusion with k=60 for combining results across every search backend."},
			{Role: "assistant", Content: "We discovered a gotcha with the retry logic that caused duplicate captures under load testing."},
		},
	}
	raw, _ := json.Marshal(input)

	out, err := h.Handle(string(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp Response
	json.Unmarshal([]byte(out), &resp)
	if resp.Metadata["captured_count"].(float64) != 1 {
		t.Fatalf("captured_count = %v, want 1 (only the assistant section)", resp.Metadata["captured_count"])
	}
}

type stubClassifier struct {
	result ClassificationResult
	err    error
}

func (s stubClassifier) ClassifyForCapture(_ context.Context, _ string) (ClassificationResult, error) {
	return s.result, s.err
}

func TestPreCompactHandlerLLMFallback(t *testing.T) {
	svc, _, _ := newTestCaptureService()
	cfg := DefaultConfig()
	cfg.UseLLMAnalysis = true
	classifier := stubClassifier{result: ClassificationResult{
		ShouldCapture: true,
		Namespace:     model.NamespaceContext,
		Confidence:    0.8,
	}}
	h := NewPreCompactHandler(cfg, svc, fakeDomain(), WithCaptureClassifier(classifier))

	input := preCompactInput{
		Context: "A paragraph long enough to pass the minimum length check but matching no keyword family whatsoever here.",
	}
	raw, _ := json.Marshal(input)

	out, err := h.Handle(string(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp Response
	json.Unmarshal([]byte(out), &resp)
	if resp.Metadata["captured_count"].(float64) != 1 {
		t.Fatalf("captured_count = %v, want 1 from LLM fallback", resp.Metadata["captured_count"])
	}
}

func TestPreCompactHandlerNilClassifierSkipsUnmatchedParagraphs(t *testing.T) {
	svc, _, _ := newTestCaptureService()
	cfg := DefaultConfig()
	cfg.UseLLMAnalysis = true
	h := NewPreCompactHandler(cfg, svc, fakeDomain())

	input := preCompactInput{
		Context: "A paragraph long enough to pass the minimum length check but matching no keyword family whatsoever here.",
	}
	raw, _ := json.Marshal(input)

	out, err := h.Handle(string(raw))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var resp Response
	json.Unmarshal([]byte(out), &resp)
	if resp.Metadata["captured_count"].(float64) != 0 {
		t.Fatalf("captured_count = %v, want 0 with no classifier wired", resp.Metadata["captured_count"])
	}
}

func TestDedupeCandidatesKeepsHighestConfidence(t *testing.T) {
	candidates := []CaptureCandidate{
		{Content: "We decided to use Postgres.", Namespace: model.NamespaceDecisions, Confidence: 0.7},
		{Content: "we   decided to use postgres.", Namespace: model.NamespaceDecisions, Confidence: 0.9},
	}
	out := dedupeCandidates(candidates)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9 (highest retained)", out[0].Confidence)
	}
}

func TestFingerprintNormalizesWhitespaceAndCase(t *testing.T) {
	a := fingerprint("We   decided   to use Postgres")
	b := fingerprint("we decided to use postgres")
	if a != b {
		t.Errorf("fingerprints differ: %q vs %q", a, b)
	}
}

func TestSectionConfidenceBounds(t *testing.T) {
	short := sectionConfidence(strings.Repeat("x", minSectionLength))
	long := sectionConfidence(strings.Repeat("x", 200))
	if short <= 0 || short > 0.95 {
		t.Errorf("short confidence out of bounds: %v", short)
	}
	if long <= short {
		t.Errorf("long paragraph should score at least as high as short: long=%v short=%v", long, short)
	}
	if long > 0.95 {
		t.Errorf("confidence exceeded cap: %v", long)
	}
}
