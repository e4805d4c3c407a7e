package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/gc"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/prompts"
	"github.com/zircote/subcog/internal/recall"
)

// buildHandlers wires every catalog tool name to its implementation. Each
// handler resolves its domain from args via domainFromArgs, then calls
// straight through to the services.Domain bundle or the process-wide
// Services container — no handler reaches into a backend directly.
func buildHandlers() map[string]toolHandlerFunc {
	return map[string]toolHandlerFunc{
		"subcog_capture":      handleCapture,
		"subcog_recall":       handleRecall,
		"subcog_status":       handleStatus,
		"subcog_namespaces":   handleNamespaces,
		"subcog_delete":       handleDelete,
		"subcog_consolidate":  handleConsolidate,
		"subcog_reindex":      handleReindex,
		"subcog_retention_gc": handleRetentionGC,
		"subcog_expiration_gc": handleExpirationGC,
		"tool_search":         handleToolSearch,
		"tool_list":           handleToolList,
		"prompt_save":         handlePromptSave,
		"prompt_get":          handlePromptGet,
		"prompt_list":         handlePromptList,
		"prompt_run":          handlePromptRun,
		"prompt_delete":       handlePromptDelete,
	}
}

// parseTTL accepts a bare time.ParseDuration string plus the day suffix
// spec.md §6.2's CLI flag examples use ("7d"), which time.ParseDuration does
// not itself understand.
func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day-suffixed ttl %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func handleCapture(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	ns, err := model.ParseNamespace(stringArg(args, "namespace", ""))
	if err != nil {
		return "", errs.InvalidInput(err)
	}
	ttl, err := parseTTL(stringArg(args, "ttl", ""))
	if err != nil {
		return "", errs.InvalidInput(err)
	}

	result, err := d.Capture.Capture(ctx, capture.Request{
		Content:   stringArg(args, "content", ""),
		Namespace: ns,
		Domain:    domainFromArgs(args),
		Tags:      stringSliceArg(args, "tags"),
		Source:    stringArg(args, "source", "mcp"),
		ProjectID: stringArg(args, "project_id", ""),
		Branch:    stringArg(args, "branch", ""),
		FilePath:  stringArg(args, "file_path", ""),
		TTL:       ttl,
	})
	if err != nil {
		return "", err
	}
	if result.Duplicate {
		return fmt.Sprintf("duplicate (%s) of existing memory %s, not captured", result.DuplicateReason, result.URN), nil
	}
	return fmt.Sprintf("captured %s", result.URN), nil
}

func handleRecall(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}

	mode := recall.Mode(stringArg(args, "mode", string(recall.ModeHybrid)))
	filter := model.SearchFilter{
		Tags:              stringSliceArg(args, "tags"),
		TagsAny:           stringSliceArg(args, "tags_any"),
		ExcludedTags:      stringSliceArg(args, "excluded_tags"),
		SourcePattern:     stringArg(args, "source_pattern", ""),
		ProjectID:         stringArg(args, "project_id", ""),
		Branch:            stringArg(args, "branch", ""),
		FilePath:          stringArg(args, "file_path", ""),
		IncludeTombstoned: boolArg(args, "include_tombstoned", false),
	}
	if raw := stringSliceArg(args, "namespaces"); len(raw) > 0 {
		for _, n := range raw {
			filter.Namespaces = append(filter.Namespaces, model.Namespace(n))
		}
	} else if ns := stringArg(args, "namespace", ""); ns != "" {
		filter.Namespaces = []model.Namespace{model.Namespace(ns)}
	}

	result, err := d.Recall.Search(ctx, stringArg(args, "query", ""), mode, filter, intArg(args, "limit", 20))
	if err != nil {
		return "", err
	}

	out, marshalErr := json.Marshal(toRecallResults(result))
	if marshalErr != nil {
		return "", errs.OperationFailed("mcp.recall.marshal", marshalErr)
	}
	return string(out), nil
}

type recallHit struct {
	ID        string   `json:"id"`
	URN       string   `json:"urn"`
	Content   string   `json:"content"`
	Namespace string   `json:"namespace"`
	Score     float32  `json:"score"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

func toRecallResults(r recall.Result) []recallHit {
	out := make([]recallHit, 0, len(r.Memories))
	for _, h := range r.Memories {
		out = append(out, recallHit{
			ID:        h.Memory.ID,
			URN:       h.Memory.URN(),
			Content:   h.Memory.Content,
			Namespace: string(h.Memory.Namespace),
			Score:     h.Score,
			Tags:      h.Memory.Tags,
			CreatedAt: h.Memory.CreatedAt,
		})
	}
	return out
}

func handleStatus(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	counts := make(map[string]int, len(model.AllNamespaces))
	total := 0
	for _, ns := range model.AllNamespaces {
		hits, err := d.Backends.Index.ListAll(ctx, model.SearchFilter{
			Namespaces: []model.Namespace{ns},
			Statuses:   []model.Status{model.StatusActive},
		}, 0)
		if err != nil {
			return "", errs.OperationFailed("mcp.status.list", err)
		}
		counts[string(ns)] = len(hits)
		total += len(hits)
	}
	out, err := json.Marshal(map[string]any{"domain": domainFromArgs(args).String(), "total": total, "by_namespace": counts})
	if err != nil {
		return "", errs.OperationFailed("mcp.status.marshal", err)
	}
	return string(out), nil
}

func handleNamespaces(ctx context.Context, s *Server, args map[string]any) (string, error) {
	type entry struct {
		Name           string `json:"name"`
		DisplayName    string `json:"display_name"`
		RetentionDays  int    `json:"default_retention_days"`
	}
	entries := make([]entry, 0, len(model.AllNamespaces))
	for _, ns := range model.AllNamespaces {
		entries = append(entries, entry{Name: string(ns), DisplayName: ns.DisplayName(), RetentionDays: ns.DefaultRetentionDays()})
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "", errs.OperationFailed("mcp.namespaces.marshal", err)
	}
	return string(out), nil
}

func handleDelete(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	id := stringArg(args, "id", "")
	if id == "" {
		return "", errs.InvalidInputf("id is required")
	}
	if err := d.Capture.Delete(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("tombstoned %s", id), nil
}

func handleConsolidate(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	stats, err := d.Consolidation.ConsolidateMemories(ctx, boolArg(args, "dry_run", false))
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(stats)
	if err != nil {
		return "", errs.OperationFailed("mcp.consolidate.marshal", err)
	}
	return string(out), nil
}

func handleReindex(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	count, err := d.Capture.Reindex(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reindexed %d memories", count), nil
}

func handleRetentionGC(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	result, err := d.Retention.GCExpiredMemories(ctx, boolArg(args, "dry_run", false))
	if err != nil {
		return "", err
	}
	return marshalGCResult(result)
}

func handleExpirationGC(ctx context.Context, s *Server, args map[string]any) (string, error) {
	d, err := s.svc.For(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	result, err := d.Expiration.GCExpiredMemories(ctx, boolArg(args, "dry_run", false))
	if err != nil {
		return "", err
	}
	return marshalGCResult(result)
}

func marshalGCResult(result gc.Result) (string, error) {
	out, err := json.Marshal(map[string]any{
		"dry_run":    result.DryRun,
		"tombstoned": result.Tombstoned,
		"failed":     result.Failed,
	})
	if err != nil {
		return "", errs.OperationFailed("mcp.gc.marshal", err)
	}
	return string(out), nil
}

func handleToolSearch(ctx context.Context, s *Server, args map[string]any) (string, error) {
	results, err := s.tools.Search(stringArg(args, "query", ""))
	if err != nil {
		return "", errs.OperationFailed("mcp.tool_search", err)
	}
	if cat := stringArg(args, "category", ""); cat != "" {
		filtered := results[:0]
		for _, r := range results {
			if string(r.Tool.Category) == cat {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	return marshalToolResults(results)
}

func handleToolList(ctx context.Context, s *Server, args map[string]any) (string, error) {
	var tools []*ToolMetadata
	if cat := stringArg(args, "category", ""); cat != "" {
		tools = s.tools.ListByCategory(ToolCategory(cat))
	} else {
		tools = s.tools.List()
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	out, err := json.Marshal(names)
	if err != nil {
		return "", errs.OperationFailed("mcp.tool_list.marshal", err)
	}
	return string(out), nil
}

func marshalToolResults(results []SearchResult) (string, error) {
	type item struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Score       int    `json:"score"`
	}
	out := make([]item, 0, len(results))
	for _, r := range results {
		out = append(out, item{Name: r.Tool.Name, Description: r.Tool.Description, Category: string(r.Tool.Category), Score: r.Score})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", errs.OperationFailed("mcp.tool_search.marshal", err)
	}
	return string(b), nil
}

func handlePromptSave(ctx context.Context, s *Server, args map[string]any) (string, error) {
	name := stringArg(args, "name", "")
	body := stringArg(args, "body", "")
	if name == "" || body == "" {
		return "", errs.InvalidInputf("name and body are required")
	}
	err := s.svc.Prompts().Save(ctx, model.PromptTemplate{
		Name:   name,
		Domain: domainFromArgs(args),
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("saved %s", prompts.URN(domainFromArgs(args), name)), nil
}

func handlePromptGet(ctx context.Context, s *Server, args map[string]any) (string, error) {
	name := stringArg(args, "name", "")
	tmpl, err := s.svc.Prompts().Get(ctx, domainFromArgs(args), name)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(tmpl)
	if err != nil {
		return "", errs.OperationFailed("mcp.prompt_get.marshal", err)
	}
	return string(out), nil
}

func handlePromptList(ctx context.Context, s *Server, args map[string]any) (string, error) {
	list, err := s.svc.Prompts().List(ctx, domainFromArgs(args))
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(list)
	if err != nil {
		return "", errs.OperationFailed("mcp.prompt_list.marshal", err)
	}
	return string(out), nil
}

func handlePromptRun(ctx context.Context, s *Server, args map[string]any) (string, error) {
	name := stringArg(args, "name", "")
	tmpl, err := s.svc.Prompts().Get(ctx, domainFromArgs(args), name)
	if err != nil {
		return "", err
	}
	vars := prompts.Vars{}
	if raw, ok := args["variables"].(map[string]any); ok {
		for k, v := range raw {
			vars[k] = v
		}
	}
	return prompts.Render(tmpl.Body, vars), nil
}

func handlePromptDelete(ctx context.Context, s *Server, args map[string]any) (string, error) {
	name := stringArg(args, "name", "")
	ok, err := s.svc.Prompts().Delete(ctx, domainFromArgs(args), name)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("no prompt named %q", name), nil
	}
	return fmt.Sprintf("deleted %s", prompts.URN(domainFromArgs(args), name)), nil
}

// toToolSchema maps registry metadata to the wire-level tool description,
// including a minimal JSON Schema for its arguments.
func toToolSchema(t *ToolMetadata) toolSchema {
	return toolSchema{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: inputSchemaFor(t.Name),
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(desc string) map[string]any  { return map[string]any{"type": "string", "description": desc} }
func boolProp(desc string) map[string]any { return map[string]any{"type": "boolean", "description": desc} }
func intProp(desc string) map[string]any  { return map[string]any{"type": "integer", "description": desc} }
func arrProp(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

// domainProps is embedded in every domain-scoped tool's schema (spec.md
// §4.11 domain-scoped routing).
func domainProps(props map[string]any) map[string]any {
	props["scope"] = strProp("project (default), user, or org")
	props["project"] = strProp("project identifier")
	props["repository"] = strProp("repository identifier")
	props["organization"] = strProp("organization identifier")
	return props
}

func inputSchemaFor(name string) map[string]any {
	switch name {
	case "subcog_capture":
		return objectSchema(domainProps(map[string]any{
			"content":    strProp("the text to remember"),
			"namespace":  strProp("one of the closed set of memory namespaces"),
			"tags":       arrProp("free-form tags"),
			"source":     strProp("who/what captured this memory"),
			"project_id": strProp("project identifier to attach"),
			"branch":     strProp("git branch to attach"),
			"file_path":  strProp("file path to attach"),
			"ttl":        strProp("optional TTL, e.g. 30m, 24h, 7d"),
		}), "content", "namespace")
	case "subcog_recall":
		return objectSchema(domainProps(map[string]any{
			"query":              strProp("search text"),
			"mode":               strProp("text, vector, or hybrid (default)"),
			"namespace":          strProp("single namespace filter"),
			"namespaces":         arrProp("multiple namespace filter"),
			"tags":               arrProp("require all of these tags"),
			"tags_any":           arrProp("require any of these tags"),
			"excluded_tags":      arrProp("exclude these tags"),
			"limit":              intProp("max results (default 20)"),
			"include_tombstoned": boolProp("include tombstoned memories"),
		}), "query")
	case "subcog_status", "subcog_namespaces", "subcog_reindex", "tool_search", "tool_list":
		props := map[string]any{}
		if name == "tool_search" || name == "tool_list" {
			props["query"] = strProp("search text (tool_search only)")
			props["category"] = strProp("capture, recall, maintenance, prompt, or discovery")
		}
		if name == "subcog_status" || name == "subcog_reindex" {
			props = domainProps(props)
		}
		return objectSchema(props)
	case "subcog_delete":
		return objectSchema(domainProps(map[string]any{"id": strProp("memory id to tombstone")}), "id")
	case "subcog_consolidate", "subcog_retention_gc", "subcog_expiration_gc":
		return objectSchema(domainProps(map[string]any{"dry_run": boolProp("report without writing")}))
	case "prompt_save":
		return objectSchema(domainProps(map[string]any{
			"name": strProp("prompt name"),
			"body": strProp("template body with {{var}}/{{#each}} placeholders"),
		}), "name", "body")
	case "prompt_get", "prompt_delete":
		return objectSchema(domainProps(map[string]any{"name": strProp("prompt name")}), "name")
	case "prompt_list":
		return objectSchema(domainProps(map[string]any{}))
	case "prompt_run":
		return objectSchema(domainProps(map[string]any{
			"name":      strProp("prompt name"),
			"variables": map[string]any{"type": "object", "description": "substitution variables"},
		}), "name")
	default:
		return objectSchema(map[string]any{})
	}
}
