package index

import (
	"strings"
	"testing"

	"github.com/zircote/subcog/internal/model"
)

func TestEscapeLikeWildcards(t *testing.T) {
	cases := map[string]string{
		"100%_v2": `100\%\_v2`,
		`back\slash`: `back\\slash`,
		"plain":    "plain",
	}
	for in, want := range cases {
		if got := escapeLikeWildcards(in); got != want {
			t.Fatalf("escapeLikeWildcards(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGlobToLikePattern(t *testing.T) {
	cases := map[string]string{
		"cli-*":    "cli-%",
		"a?c":      "a_c",
		"100%_off": `100\%\_off`,
	}
	for in, want := range cases {
		if got := globToLikePattern(in); got != want {
			t.Fatalf("globToLikePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildFilterClauseTagsUseSentinelCommaEscape(t *testing.T) {
	clause, args := buildFilterClause(model.SearchFilter{Tags: []string{"100%_v2"}})
	if !strings.Contains(clause, "LIKE ? ESCAPE '\\'") {
		t.Fatalf("expected ESCAPE clause, got %q", clause)
	}
	if len(args) != 1 || args[0] != `%,100\%\_v2,%` {
		t.Fatalf("expected escaped sentinel-comma pattern, got %v", args)
	}
}

func TestBuildFilterClauseExcludesTombstonedByDefault(t *testing.T) {
	clause, _ := buildFilterClause(model.SearchFilter{})
	if !strings.Contains(clause, "status != 'tombstoned'") {
		t.Fatalf("expected default tombstone exclusion, got %q", clause)
	}

	clause2, _ := buildFilterClause(model.SearchFilter{IncludeTombstoned: true})
	if strings.Contains(clause2, "tombstoned") {
		t.Fatalf("IncludeTombstoned=true must not filter tombstoned rows, got %q", clause2)
	}
}

func TestBuildFilterClauseNoConditionsIsEmpty(t *testing.T) {
	clause, args := buildFilterClause(model.SearchFilter{IncludeTombstoned: true})
	if clause != "" || args != nil {
		t.Fatalf("expected empty clause/args, got %q %v", clause, args)
	}
}

func TestFtsQueryQuotesAndOrJoinsTerms(t *testing.T) {
	got := ftsQuery(`PostgreSQL database`)
	want := `"PostgreSQL" OR "database"`
	if got != want {
		t.Fatalf("ftsQuery() = %q, want %q", got, want)
	}
}

func TestFtsQueryNeverPastesOperatorsRaw(t *testing.T) {
	// An attempted FTS operator injection must be neutralized by quoting:
	// the malicious text becomes a literal phrase term, not live syntax.
	got := ftsQuery(`evil" OR 1=1 --`)
	if strings.Contains(got, `evil" OR`) {
		t.Fatalf("raw operator text leaked into query: %q", got)
	}
	if !strings.HasPrefix(got, `"evil""`) {
		t.Fatalf("expected embedded quote to be escaped as doubled quote, got %q", got)
	}
}

func TestFtsQueryEmpty(t *testing.T) {
	if got := ftsQuery("   "); got != "" {
		t.Fatalf("expected empty query to produce empty fts string, got %q", got)
	}
}

func TestNormalizeBM25ClampsToUnitInterval(t *testing.T) {
	if got := normalizeBM25(0); got != 1.0 {
		t.Fatalf("normalizeBM25(0) = %v, want 1.0", got)
	}
	if got := normalizeBM25(-1); got < 0 || got > 1 {
		t.Fatalf("normalizeBM25(-1) = %v, out of [0,1]", got)
	}
	if got := normalizeBM25(-99); got < 0 || got > 1 {
		t.Fatalf("normalizeBM25(-99) = %v, out of [0,1]", got)
	}
}
