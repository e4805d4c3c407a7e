package index

import (
	"fmt"
	"strings"

	"github.com/zircote/subcog/internal/model"
)

// escapeLikeWildcards escapes SQL LIKE wildcards ('%', '_', '\') so a
// literal string can be embedded safely in a LIKE pattern (spec.md §4.2;
// ported exactly from the tag-safe SQL predicate assembly this spec
// describes).
func escapeLikeWildcards(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// globToLikePattern converts a glob-style pattern ('*', '?') to a SQL LIKE
// pattern, escaping any literal LIKE wildcards in the pattern first so they
// are not misinterpreted as SQL wildcards after conversion.
func globToLikePattern(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) * 2)
	for _, c := range pattern {
		switch c {
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(c)
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// buildFilterClause assembles a SQL WHERE clause (prefixed " AND " when
// non-empty) from a SearchFilter, along with its positional arguments in
// the same order as the '?' placeholders that appear in the clause. Column
// references are qualified with the "m." alias used by both the index and
// persistence SQL backends.
func buildFilterClause(filter model.SearchFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if len(filter.Namespaces) > 0 {
		placeholders := make([]string, len(filter.Namespaces))
		for i, ns := range filter.Namespaces {
			placeholders[i] = "?"
			args = append(args, string(ns))
		}
		conditions = append(conditions, fmt.Sprintf("m.namespace IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("m.status IN (%s)", strings.Join(placeholders, ",")))
	}

	// Tag filtering (AND): each tag must appear as a whole comma-delimited
	// token in m.tags.
	for _, tag := range filter.Tags {
		conditions = append(conditions, "(',' || m.tags || ',') LIKE ? ESCAPE '\\'")
		args = append(args, "%,"+escapeLikeWildcards(tag)+",%")
	}

	// Tag filtering (OR).
	if len(filter.TagsAny) > 0 {
		orConds := make([]string, len(filter.TagsAny))
		for i, tag := range filter.TagsAny {
			orConds[i] = "(',' || m.tags || ',') LIKE ? ESCAPE '\\'"
			args = append(args, "%,"+escapeLikeWildcards(tag)+",%")
		}
		conditions = append(conditions, "("+strings.Join(orConds, " OR ")+")")
	}

	// Excluded tags (NOT LIKE).
	for _, tag := range filter.ExcludedTags {
		conditions = append(conditions, "(',' || m.tags || ',') NOT LIKE ? ESCAPE '\\'")
		args = append(args, "%,"+escapeLikeWildcards(tag)+",%")
	}

	if filter.SourcePattern != "" {
		conditions = append(conditions, "m.source LIKE ? ESCAPE '\\'")
		args = append(args, globToLikePattern(filter.SourcePattern))
	}

	if filter.ProjectID != "" {
		conditions = append(conditions, "m.project_id = ?")
		args = append(args, filter.ProjectID)
	}

	if filter.Branch != "" {
		conditions = append(conditions, "m.branch = ?")
		args = append(args, filter.Branch)
	}

	if filter.FilePath != "" {
		conditions = append(conditions, "m.file_path = ?")
		args = append(args, filter.FilePath)
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, "m.created_at >= ?")
		args = append(args, *filter.CreatedAfter)
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, "m.created_at <= ?")
		args = append(args, *filter.CreatedBefore)
	}

	if !filter.IncludeTombstoned {
		conditions = append(conditions, "m.status != 'tombstoned'")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conditions, " AND "), args
}

// ftsQuery converts free-form user query text into a sequence of quoted
// literal terms OR-joined, never pasting raw text into the FTS5 query
// grammar (spec.md §4.2: "never pasted raw into an FTS grammar, to avoid
// injection of FTS operators").
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// normalizeBM25 converts a native, negative, lower-is-better BM25 score
// into [0,1] where higher is better (spec.md §4.2).
func normalizeBM25(bm25 float64) float32 {
	score := 1.0 / (1.0 - bm25)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return float32(score)
}
