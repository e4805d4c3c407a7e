package hooks

import "regexp"

// namespaceSignal pairs a namespace with the regex family that indicates it,
// shared by UserPromptSubmit's prompt-level scan and PreCompact's
// paragraph-level scan (spec.md §4.12: "decision language, pattern
// language, learning language, blocker language, tech-debt language").
type namespaceSignal struct {
	namespace string
	pattern   *regexp.Regexp
}

func mustCompileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var decisionPatterns = mustCompileAll(
	`(?i)\b(we('re| are|'ll| will) (going to |gonna )?use|let's use|using)\b`,
	`(?i)\b(decided|decision|choosing|chose|picked|selected)\b`,
	`(?i)\b(architecture|design|approach|strategy|solution)\b`,
	`(?i)\b(from now on|going forward|henceforth)\b`,
	`(?i)\b(always|never) (do|use|implement)\b`,
)

var patternPatterns = mustCompileAll(
	`(?i)\b(pattern|convention|standard|best practice)\b`,
	`(?i)\b(always|never|should|must)\b.*\b(when|if|before|after)\b`,
	`(?i)\b(rule|guideline|principle)\b`,
)

var learningPatterns = mustCompileAll(
	`(?i)\b(learned|discovered|realized|found out|figured out)\b`,
	`(?i)\b(TIL|turns out|apparently|actually)\b`,
	`(?i)\b(gotcha|caveat|quirk|edge case)\b`,
	`(?i)\b(insight|understanding|revelation)\b`,
)

var blockerPatterns = mustCompileAll(
	`(?i)\b(blocked|stuck|issue|problem|bug|error)\b`,
	`(?i)\b(fixed|solved|resolved|workaround|solution)\b`,
	`(?i)\b(doesn't work|not working|broken|fails)\b`,
)

var techDebtPatterns = mustCompileAll(
	`(?i)\b(tech debt|technical debt|refactor|cleanup)\b`,
	`(?i)\b(TODO|FIXME|HACK|XXX)\b`,
	`(?i)\b(temporary|workaround|quick fix|shortcut)\b`,
)

var contextPatterns = mustCompileAll(
	`(?i)\b(because|since|the reason|in order to|so that)\b`,
	`(?i)\b(this is why|that's why|rationale)\b`,
)

// captureCommand matches an explicit "@subcog capture ..." instruction,
// which always wins over keyword-family detection.
var captureCommand = regexp.MustCompile(`(?i)^@?subcog\s+(capture|remember|save|store)\b`)

// matchPatterns returns every pattern in family that matches text.
func matchPatterns(family []*regexp.Regexp, text string) []string {
	var matched []string
	for _, p := range family {
		if p.MatchString(text) {
			matched = append(matched, p.String())
		}
	}
	return matched
}
