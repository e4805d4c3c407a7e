package hooks

import "testing"

func TestDetectSearchIntent(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   IntentType
		ok     bool
	}{
		{"howto", "How do I implement retry logic for the API client?", IntentHowTo, true},
		{"location", "Where is the config loader defined in this repo?", IntentLocation, true},
		{"explanation", "What is the purpose of the dedup engine?", IntentExplanation, true},
		{"comparison", "What's the difference between BM25 and vector search?", IntentComparison, true},
		{"troubleshoot", "Why is this throwing an error when I run the tests?", IntentTroubleshoot, true},
		{"general", "search for usages of the embedder interface", IntentGeneral, true},
		{"none", "thanks, that looks good", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := detectSearchIntent(tt.prompt)
			if ok != tt.ok {
				t.Fatalf("detectSearchIntent(%q) ok = %v, want %v", tt.prompt, ok, tt.ok)
			}
			if ok && got.Type != tt.want {
				t.Errorf("detectSearchIntent(%q).Type = %s, want %s", tt.prompt, got.Type, tt.want)
			}
		})
	}
}

func TestDetectSearchIntentEmptyPrompt(t *testing.T) {
	if _, ok := detectSearchIntent(""); ok {
		t.Fatal("empty prompt should not produce an intent")
	}
}

func TestExtractTopics(t *testing.T) {
	topics := extractTopics("How do I configure the vectorstore embedder for hybrid search in 2024?")
	if len(topics) == 0 {
		t.Fatal("expected at least one topic")
	}
	for _, topic := range topics {
		if _, stop := stopWords[topic]; stop {
			t.Errorf("topic %q should have been filtered as a stop word", topic)
		}
		if len(topic) < 3 {
			t.Errorf("topic %q shorter than minimum length", topic)
		}
		if isAllDigits(topic) {
			t.Errorf("topic %q should have been filtered as all-digits", topic)
		}
	}
	if len(topics) > 5 {
		t.Errorf("extractTopics returned %d topics, want at most 5", len(topics))
	}
}

func TestExtractTopicsDeduplicates(t *testing.T) {
	topics := extractTopics("config config config loader loader")
	seen := map[string]int{}
	for _, topic := range topics {
		seen[topic]++
	}
	for topic, count := range seen {
		if count > 1 {
			t.Errorf("topic %q appeared %d times, want deduplicated", topic, count)
		}
	}
}

func TestSearchIntentConfidenceBounds(t *testing.T) {
	short := searchIntentConfidence([]searchSignal{{}}, "how?")
	if short <= 0 || short > 0.95 {
		t.Errorf("confidence out of bounds: %v", short)
	}

	long := searchIntentConfidence([]searchSignal{{}, {}, {}, {}}, "How do I do this? And also that? And one more thing, please explain.")
	if long > 0.95 {
		t.Errorf("confidence exceeded cap: %v", long)
	}
}

func TestIsAllDigits(t *testing.T) {
	cases := map[string]bool{
		"123":   true,
		"":      false,
		"12a":   false,
		"00042": true,
	}
	for in, want := range cases {
		if got := isAllDigits(in); got != want {
			t.Errorf("isAllDigits(%q) = %v, want %v", in, got, want)
		}
	}
}
