package model

// SearchFilter is an AND of optional predicates applied by IndexBackend,
// VectorBackend and RecallService alike (spec.md §3).
type SearchFilter struct {
	Namespaces []Namespace `json:"namespaces,omitempty"`
	Statuses   []Status    `json:"statuses,omitempty"`

	Tags         []string `json:"tags,omitempty"`          // AND
	TagsAny      []string `json:"tags_any,omitempty"`       // OR
	ExcludedTags []string `json:"excluded_tags,omitempty"`

	SourcePattern string `json:"source_pattern,omitempty"` // glob

	ProjectID string `json:"project_id,omitempty"`
	Branch    string `json:"branch,omitempty"`
	FilePath  string `json:"file_path,omitempty"`

	CreatedAfter  *int64 `json:"created_after,omitempty"`
	CreatedBefore *int64 `json:"created_before,omitempty"`

	MinScore float32 `json:"min_score,omitempty"`

	IncludeTombstoned bool `json:"include_tombstoned,omitempty"`
}

// Matches reports whether m satisfies every predicate of f. It does not
// itself special-case IncludeTombstoned/tombstone visibility — callers
// (internal/index, internal/recall) are expected to have already excluded
// tombstoned records unless IncludeTombstoned is set; Matches is used both
// to validate backend query results in tests and to post-filter result sets
// assembled in memory (e.g. vector hits hydrated from persistence).
func (f SearchFilter) Matches(m Memory) bool {
	if !f.IncludeTombstoned && m.IsTombstoned() {
		return false
	}
	if len(f.Namespaces) > 0 && !containsNamespace(f.Namespaces, m.Namespace) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, m.Status) {
		return false
	}
	if len(f.Tags) > 0 && !hasAllTags(m.Tags, f.Tags) {
		return false
	}
	if len(f.TagsAny) > 0 && !hasAnyTag(m.Tags, f.TagsAny) {
		return false
	}
	if len(f.ExcludedTags) > 0 && hasAnyTag(m.Tags, f.ExcludedTags) {
		return false
	}
	if f.ProjectID != "" && m.ProjectID != f.ProjectID {
		return false
	}
	if f.Branch != "" && m.Branch != f.Branch {
		return false
	}
	if f.FilePath != "" && m.FilePath != f.FilePath {
		return false
	}
	if f.CreatedAfter != nil && m.CreatedAt < *f.CreatedAfter {
		return false
	}
	if f.CreatedBefore != nil && m.CreatedAt > *f.CreatedBefore {
		return false
	}
	if f.SourcePattern != "" && !globMatch(f.SourcePattern, m.Source) {
		return false
	}
	return true
}

func containsNamespace(list []Namespace, v Namespace) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, v Status) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func hasAllTags(have []string, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func hasAnyTag(have []string, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// globMatch implements the source-pattern predicate in-memory: '*' matches
// any run of characters, '?' matches exactly one. internal/index implements
// the equivalent as a SQL GLOB/LIKE translation; this copy is used for
// in-memory post-filtering (e.g. over vector-backend hits).
func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		if globMatchRunes(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if globMatchRunes(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	}
}
