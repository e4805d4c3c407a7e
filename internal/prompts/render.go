package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zircote/subcog/internal/model"
)

// varPattern matches {{name}} substitution points; eachPattern matches
// {{#each list}}...{{/each}} iteration blocks. This is a deliberately
// minimal, non-HTML-escaping grammar (spec.md §3): not full Mustache, just
// the two constructs the spec names.
var (
	varPattern  = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)
	eachPattern = regexp.MustCompile(`(?s)\{\{#each\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}(.*?)\{\{/each\}\}`)
)

// Vars is the substitution context passed to Render: scalar values for
// {{var}}, and []map[string]string or []string for {{#each}} blocks.
type Vars map[string]interface{}

// Render expands body against vars, first resolving every {{#each list}}
// block (iterating its item over the block body), then substituting
// remaining {{var}} placeholders (spec.md §3).
func Render(body string, vars Vars) string {
	expanded := eachPattern.ReplaceAllStringFunc(body, func(match string) string {
		sub := eachPattern.FindStringSubmatch(match)
		listName, block := sub[1], sub[2]

		items, ok := vars[listName]
		if !ok {
			return ""
		}

		var b strings.Builder
		switch v := items.(type) {
		case []map[string]string:
			for _, item := range v {
				itemVars := make(Vars, len(item))
				for k, val := range item {
					itemVars[k] = val
				}
				b.WriteString(substituteVars(block, itemVars))
			}
		case []string:
			for _, item := range v {
				b.WriteString(substituteVars(block, Vars{"this": item}))
			}
		}
		return b.String()
	})

	return substituteVars(expanded, vars)
}

func substituteVars(s string, vars Vars) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return toDisplay(v)
		}
		return match // leave unresolved placeholders intact
	})
}

func toDisplay(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExtractVariables scans body for {{var}} placeholders (ignoring {{#each}}
// / {{/each}} control tokens) and classifies each as user-provided, since
// that is the only kind a raw template body can express; auto variables
// are attached by callers that know the memory/statistics context (spec.md
// §3).
func ExtractVariables(body string) []model.TemplateVariable {
	seen := make(map[string]bool)
	var out []model.TemplateVariable
	for _, m := range varPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, model.TemplateVariable{Name: name, Kind: model.VariableUser})
	}
	return out
}

// AutoVars builds the auto-populated variable set the renderer injects for
// ContextTemplate rendering: memory fields and simple statistics (spec.md
// §3 "auto" variable kind).
func AutoVars(memories []model.Memory) Vars {
	items := make([]map[string]string, 0, len(memories))
	for _, m := range memories {
		items = append(items, map[string]string{
			"id":        m.ID,
			"namespace": string(m.Namespace),
			"content":   m.Content,
			"source":    m.Source,
		})
	}
	return Vars{
		"memories":     items,
		"memory_count": len(memories),
	}
}
