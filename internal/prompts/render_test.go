package prompts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zircote/subcog/internal/model"
)

func TestRenderSubstitutesSimpleVars(t *testing.T) {
	got := Render("Hello {{name}}, you have {{count}} memories.", Vars{"name": "Ada", "count": 3})
	require.Equal(t, "Hello Ada, you have 3 memories.", got)
}

func TestRenderLeavesUnresolvedPlaceholdersIntact(t *testing.T) {
	got := Render("Hello {{name}}", Vars{})
	require.Equal(t, "Hello {{name}}", got)
}

func TestRenderEachOverStringList(t *testing.T) {
	got := Render("Tags: {{#each tags}}[{{this}}]{{/each}}", Vars{"tags": []string{"a", "b", "c"}})
	require.Equal(t, "Tags: [a][b][c]", got)
}

func TestRenderEachOverMapList(t *testing.T) {
	items := []map[string]string{
		{"id": "m1", "content": "first"},
		{"id": "m2", "content": "second"},
	}
	got := Render("{{#each memories}}- {{id}}: {{content}}\n{{/each}}", Vars{"memories": items})
	require.Equal(t, "- m1: first\n- m2: second\n", got)
}

func TestRenderEachWithMissingListIsEmpty(t *testing.T) {
	got := Render("Start[{{#each missing}}{{this}}{{/each}}]End", Vars{})
	require.Equal(t, "Start[]End", got)
}

func TestRenderCombinesEachAndTrailingVars(t *testing.T) {
	got := Render("{{#each tags}}{{this}},{{/each}} total={{count}}", Vars{
		"tags": []string{"x", "y"}, "count": 2,
	})
	require.Equal(t, "x,y, total=2", got)
}

func TestExtractVariablesDedupesAndIgnoresEachTokens(t *testing.T) {
	vars := ExtractVariables("{{#each memories}}{{id}}: {{content}}{{/each}} seen {{id}} again")
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, v.Name)
		require.Equal(t, model.VariableUser, v.Kind)
	}
	require.ElementsMatch(t, []string{"id", "content"}, names)
}

func TestExtractVariablesEmptyBody(t *testing.T) {
	require.Empty(t, ExtractVariables("no placeholders here"))
}

func TestAutoVarsBuildsMemoryListAndCount(t *testing.T) {
	memories := []model.Memory{
		{ID: "m1", Namespace: model.NamespaceDecisions, Content: "first", Source: "manual"},
		{ID: "m2", Namespace: model.NamespacePatterns, Content: "second", Source: "hook"},
	}
	vars := AutoVars(memories)
	require.Equal(t, 2, vars["memory_count"])

	items, ok := vars["memories"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, items, 2)
	require.Equal(t, "m1", items[0]["id"])
	require.Equal(t, "decisions", items[0]["namespace"])
}

func TestAutoVarsRendersThroughTemplate(t *testing.T) {
	memories := []model.Memory{
		{ID: "m1", Namespace: model.NamespaceDecisions, Content: "use postgres", Source: "manual"},
	}
	vars := AutoVars(memories)
	got := Render("{{memory_count}} memories:\n{{#each memories}}- {{content}}\n{{/each}}", vars)
	require.Equal(t, "1 memories:\n- use postgres\n", got)
}
