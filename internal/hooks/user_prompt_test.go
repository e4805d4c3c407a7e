package hooks

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/recall"
)

func decodeResponse(t *testing.T, raw string) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestUserPromptHandlerEmptyPrompt(t *testing.T) {
	h := NewUserPromptHandler(DefaultConfig(), nil)
	raw, err := h.Handle(`{"prompt": ""}`)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := decodeResponse(t, raw)
	if !resp.Continue {
		t.Fatal("expected continue=true")
	}
	if resp.Metadata["should_capture"] != false {
		t.Errorf("should_capture = %v, want false", resp.Metadata["should_capture"])
	}
}

func TestUserPromptHandlerExplicitCaptureCommand(t *testing.T) {
	h := NewUserPromptHandler(DefaultConfig(), nil)
	raw, err := h.Handle(`{"prompt": "@subcog capture we use RRF with k=60 for fusion"}`)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := decodeResponse(t, raw)
	if resp.Metadata["should_capture"] != true {
		t.Fatalf("should_capture = %v, want true", resp.Metadata["should_capture"])
	}
	if !strings.Contains(resp.Context, "Explicit capture command detected") {
		t.Errorf("context = %q, want explicit-command message", resp.Context)
	}
}

func TestUserPromptHandlerKeywordSignal(t *testing.T) {
	h := NewUserPromptHandler(DefaultConfig(), nil)
	prompt := "We decided to use Postgres as the datastore going forward, since it handles our write volume."
	raw, err := h.Handle(`{"prompt": ` + jsonString(prompt) + `}`)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := decodeResponse(t, raw)
	if resp.Metadata["should_capture"] != true {
		t.Fatalf("should_capture = %v, want true for decision language", resp.Metadata["should_capture"])
	}
	if !strings.Contains(resp.Context, "decisions") {
		t.Errorf("context = %q, want mention of decisions namespace", resp.Context)
	}
}

func TestUserPromptHandlerSearchIntentNoRecall(t *testing.T) {
	h := NewUserPromptHandler(DefaultConfig(), nil)
	raw, err := h.Handle(`{"prompt": "How do I fix the flaky retry logic in the capture pipeline?"}`)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := decodeResponse(t, raw)
	intent, ok := resp.Metadata["search_intent"].(map[string]interface{})
	if !ok {
		t.Fatalf("search_intent metadata missing or wrong shape: %v", resp.Metadata["search_intent"])
	}
	if intent["detected"] != true {
		t.Errorf("search intent detected = %v, want true", intent["detected"])
	}
}

func TestUserPromptHandlerSurfacesRecallMatches(t *testing.T) {
	idx := newFakeIndex()
	existing := model.Memory{
		ID:        "mem-1",
		Content:   "We use exponential backoff for retry logic in the capture pipeline.",
		Namespace: model.NamespacePatterns,
		Domain:    fakeDomain(),
		Status:    model.StatusActive,
		CreatedAt: 1,
		UpdatedAt: 1,
	}
	idx.records[existing.ID] = existing

	recallSvc := recall.New(idx, nil, nil)
	h := NewUserPromptHandler(DefaultConfig(), recallSvc)

	raw, err := h.Handle(`{"prompt": "How do I fix the retry logic in the capture pipeline?"}`)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	resp := decodeResponse(t, raw)
	if !strings.Contains(resp.Context, "mem-1") {
		t.Errorf("context = %q, want surfaced memory id", resp.Context)
	}
}

func TestPromptConfidenceBounds(t *testing.T) {
	low := promptConfidence([]string{"x"}, "short")
	if low <= 0 || low > 0.95 {
		t.Errorf("confidence out of bounds: %v", low)
	}
	high := promptConfidence([]string{"a", "b", "c", "d"}, strings.Repeat("word ", 20)+".")
	if high > 0.95 {
		t.Errorf("confidence exceeded cap: %v", high)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short string changed: %q", got)
	}
	if got := truncate("hello world", 8); got != "hello..." {
		t.Errorf("truncate = %q, want %q", got, "hello...")
	}
}

func TestCombineContext(t *testing.T) {
	if got := combineContext("", ""); got != "" {
		t.Errorf("combineContext(\"\",\"\") = %q, want empty", got)
	}
	if got := combineContext("a", ""); got != "a" {
		t.Errorf("combineContext(a,\"\") = %q, want a", got)
	}
	if got := combineContext("", "b"); got != "b" {
		t.Errorf("combineContext(\"\",b) = %q, want b", got)
	}
	if got := combineContext("a", "b"); !strings.Contains(got, "a") || !strings.Contains(got, "b") {
		t.Errorf("combineContext(a,b) = %q, want both parts", got)
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
