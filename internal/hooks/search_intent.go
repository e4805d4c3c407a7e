package hooks

import (
	"regexp"
	"strings"
)

// IntentType classifies the kind of information a prompt is seeking
// (spec.md §4.12 "search intent detector").
type IntentType string

const (
	IntentHowTo        IntentType = "howto"
	IntentLocation     IntentType = "location"
	IntentExplanation  IntentType = "explanation"
	IntentComparison   IntentType = "comparison"
	IntentTroubleshoot IntentType = "troubleshoot"
	IntentGeneral      IntentType = "general"
)

// intentPriority orders intent types from most to least specific; the
// first type with at least one matching signal wins (original_source
// src/hooks/search_intent.rs: determine_primary_intent).
var intentPriority = []IntentType{
	IntentHowTo, IntentTroubleshoot, IntentLocation, IntentExplanation, IntentComparison, IntentGeneral,
}

type searchSignal struct {
	pattern *regexp.Regexp
	intent  IntentType
}

var searchSignals = []searchSignal{
	{regexp.MustCompile(`(?i)\bhow\s+(do|can|should|would)\s+(i|we|you)\b`), IntentHowTo},
	{regexp.MustCompile(`(?i)\bhow\s+to\b`), IntentHowTo},
	{regexp.MustCompile(`(?i)\b(implement|create|build|make|add|write)\s+a?\b`), IntentHowTo},
	{regexp.MustCompile(`(?i)\bsteps?\s+(to|for)\b`), IntentHowTo},
	{regexp.MustCompile(`(?i)\bguide\s+(me|us|to)\b`), IntentHowTo},

	{regexp.MustCompile(`(?i)\bwhere\s+(is|are|can\s+i\s+find)\b`), IntentLocation},
	{regexp.MustCompile(`(?i)\b(find|locate|show\s+me)\s+(the|a)?\b`), IntentLocation},
	{regexp.MustCompile(`(?i)\b(which|what)\s+file\b`), IntentLocation},
	{regexp.MustCompile(`(?i)\blook\s+(for|at|up)\b`), IntentLocation},

	{regexp.MustCompile(`(?i)\bwhat\s+(is|are|does)\b`), IntentExplanation},
	{regexp.MustCompile(`(?i)\bexplain\b`), IntentExplanation},
	{regexp.MustCompile(`(?i)\b(tell|help)\s+me\s+(about|understand)\b`), IntentExplanation},
	{regexp.MustCompile(`(?i)\bwhat('s|\s+is)\s+the\s+(purpose|meaning|role)\b`), IntentExplanation},
	{regexp.MustCompile(`(?i)\bcan\s+you\s+describe\b`), IntentExplanation},

	{regexp.MustCompile(`(?i)\bdifference\s+between\b`), IntentComparison},
	{regexp.MustCompile(`(?i)\b(compare|vs\.?|versus)\b`), IntentComparison},
	{regexp.MustCompile(`(?i)\bwhich\s+(is|one|should)\s+(better|best|prefer)\b`), IntentComparison},
	{regexp.MustCompile(`(?i)\b(pros|cons|advantages|disadvantages)\b`), IntentComparison},

	{regexp.MustCompile(`(?i)\bwhy\s+(is|does|am|are)\b.*\b(error|fail|wrong|issue)\b`), IntentTroubleshoot},
	{regexp.MustCompile(`(?i)\b(error|exception|failure|crash|bug)\b`), IntentTroubleshoot},
	{regexp.MustCompile(`(?i)\b(not\s+working|doesn't\s+work|won't\s+work|broken)\b`), IntentTroubleshoot},
	{regexp.MustCompile(`(?i)\b(fix|solve|resolve|debug)\b`), IntentTroubleshoot},
	{regexp.MustCompile(`(?i)\b(issue|problem)\s+with\b`), IntentTroubleshoot},

	{regexp.MustCompile(`(?i)\b(search|find|lookup|query)\b`), IntentGeneral},
	{regexp.MustCompile(`(?i)\bshow\s+(me|us)\b`), IntentGeneral},
}

var stopWords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
		"from", "as", "is", "was", "are", "were", "been", "be", "have", "has", "had", "do", "does",
		"did", "will", "would", "could", "should", "may", "might", "must", "shall", "can", "need",
		"i", "you", "he", "she", "it", "we", "they", "me", "him", "her", "us", "them", "my", "your",
		"his", "its", "our", "their", "this", "that", "these", "those", "what", "which", "who",
		"whom", "how", "when", "where", "why", "all", "each", "every", "both", "few", "more",
		"most", "other", "some", "such", "no", "nor", "not", "only", "own", "same", "so", "than",
		"too", "very", "just", "about", "also", "now", "here", "there", "up", "down", "out", "if",
		"then", "into", "through", "during", "before", "after", "above", "below", "between",
		"under", "again", "further", "once", "any", "something", "anything", "nothing",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// SearchIntent is a detected information-seeking intent.
type SearchIntent struct {
	Type       IntentType
	Confidence float32
	Keywords   []string
	Topics     []string
}

// detectSearchIntent scans prompt against searchSignals, returning false if
// nothing matched (original_source src/hooks/search_intent.rs).
func detectSearchIntent(prompt string) (SearchIntent, bool) {
	if prompt == "" {
		return SearchIntent{}, false
	}

	lower := strings.ToLower(prompt)
	var matched []searchSignal
	var keywords []string
	for _, sig := range searchSignals {
		if loc := sig.pattern.FindString(lower); loc != "" {
			matched = append(matched, sig)
			keywords = append(keywords, loc)
		}
	}
	if len(matched) == 0 {
		return SearchIntent{}, false
	}

	counts := make(map[IntentType]int)
	for _, m := range matched {
		counts[m.intent]++
	}
	intentType := IntentGeneral
	for _, candidate := range intentPriority {
		if counts[candidate] > 0 {
			intentType = candidate
			break
		}
	}

	return SearchIntent{
		Type:       intentType,
		Confidence: searchIntentConfidence(matched, prompt),
		Keywords:   keywords,
		Topics:     extractTopics(prompt),
	}, true
}

func searchIntentConfidence(matched []searchSignal, prompt string) float32 {
	const base = 0.5
	matchBonus := float32(len(matched)) * 0.05
	if matchBonus > 0.15 {
		matchBonus = 0.15
	}
	var lengthFactor, sentenceFactor, questionFactor float32
	if len(prompt) > 50 {
		lengthFactor = 0.1
	}
	sentences := strings.Count(prompt, ".") + strings.Count(prompt, "?") + strings.Count(prompt, "!")
	if sentences > 1 {
		sentenceFactor = 0.1
	}
	if strings.Contains(prompt, "?") {
		questionFactor = 0.1
	}
	conf := base + matchBonus + lengthFactor + sentenceFactor + questionFactor
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// extractTopics tokenizes prompt, drops stop words and short/numeric
// tokens, and returns up to 5 deduplicated topics in first-seen order.
func extractTopics(prompt string) []string {
	fields := strings.FieldsFunc(prompt, func(r rune) bool {
		switch r {
		case ',', ';', ':', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})

	seen := make(map[string]struct{})
	topics := make([]string, 0, 5)
	for _, word := range fields {
		cleaned := strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
			return !isAlphanumeric(r) && r != '-' && r != '_'
		}))
		if len(cleaned) < 3 {
			continue
		}
		if _, stop := stopWords[cleaned]; stop {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		if isAllDigits(cleaned) {
			continue
		}
		seen[cleaned] = struct{}{}
		topics = append(topics, cleaned)
		if len(topics) == 5 {
			break
		}
	}
	return topics
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
