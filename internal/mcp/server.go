// Package mcp implements the tool/resource/prompt registry surface spec.md
// §4.13 describes. The JSON-RPC 2.0 framing and stdio transport are
// hand-rolled (spec.md §4.13 scopes the wire transport itself out as a
// non-goal) rather than built on an MCP SDK, so this package has no
// dependency on any third-party MCP client/server library.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/rbac"
	"github.com/zircote/subcog/internal/services"
)

// instructions is sent to clients on initialize, guiding agents on how to
// use the capture/recall/maintenance tool surface.
const instructions = `subcog gives AI coding assistants a persistent, domain-scoped memory: capture decisions, patterns, learnings and other notes as they happen, then recall them later by text, vector similarity, or both (hybrid mode with reciprocal rank fusion). Use subcog_capture to store a memory, subcog_recall to search, subcog_status for a domain summary, and the prompt_* tools to manage reusable context templates. Use tool_search to discover maintenance tools (consolidate, reindex, namespaces) that are not loaded by default.`

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
	Logger  *zap.Logger
	// Role gates which tools this server instance exposes, via
	// internal/rbac's static permission table (spec.md §4.15).
	Role rbac.Role
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "subcog",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
		Role:    rbac.RoleUser,
	}
}

// Server is the hand-rolled MCP JSON-RPC server wrapping a
// *services.Services container. One Server instance serves one editor
// session; the domain it operates against is resolved per-request from
// tool arguments (spec.md §4.11 domain-scoped routing).
type Server struct {
	cfg      *Config
	svc      *services.Services
	logger   *zap.Logger
	tools    *ToolRegistry
	metrics  *Metrics
	handlers map[string]toolHandlerFunc
}

// toolHandlerFunc executes one tool call against the resolved domain's
// services and returns its text result.
type toolHandlerFunc func(ctx context.Context, s *Server, args map[string]any) (string, error)

// NewServer wires cfg and the shared Services container into a Server and
// registers every built-in tool.
func NewServer(cfg *Config, svc *services.Services) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if svc == nil {
		return nil, fmt.Errorf("services container is required")
	}

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		logger:  cfg.Logger,
		tools:   NewToolRegistry(),
		metrics: NewMetrics(cfg.Logger),
	}
	s.handlers = buildHandlers()
	if err := s.tools.RegisterAll(toolCatalog()); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return s, nil
}

// Run reads JSON-RPC requests from r and writes responses to w until r is
// exhausted, ctx is cancelled, or an unrecoverable I/O error occurs.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(w, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: err.Error()}})
			continue
		}

		resp := s.handle(ctx, req)
		// Notifications (no ID) get no response per JSON-RPC 2.0.
		if req.ID == nil && req.Method != "initialize" {
			continue
		}
		writeResponse(w, resp)
	}
	return scanner.Err()
}

func writeResponse(w io.Writer, resp response) {
	resp.JSONRPC = "2.0"
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func (s *Server) handle(ctx context.Context, req request) response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return response{ID: req.ID}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "resources/list":
		return s.handleResourcesList(req)
	case "resources/read":
		return s.handleResourcesRead(ctx, req)
	case "prompts/list":
		return s.handlePromptsList(ctx, req)
	case "prompts/get":
		return s.handlePromptsGet(ctx, req)
	default:
		return response{ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "unknown method: " + req.Method}}
	}
}

func (s *Server) handleInitialize(req request) response {
	return response{
		ID: req.ID,
		Result: initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: capabilities{
				Tools:     map[string]any{},
				Resources: map[string]any{},
				Prompts:   map[string]any{},
			},
			ServerInfo:   serverInfo{Name: s.cfg.Name, Version: s.cfg.Version},
			Instructions: instructions,
		},
	}
}

func (s *Server) handleToolsList(req request) response {
	tools := make([]toolSchema, 0, s.tools.Count())
	for _, name := range nonDeferredNames(s.tools) {
		t, err := s.tools.Get(name)
		if err != nil {
			continue
		}
		tools = append(tools, toToolSchema(t))
	}
	return response{ID: req.ID, Result: toolsListResult{Tools: tools}}
}

func nonDeferredNames(r *ToolRegistry) []string {
	names := make([]string, 0)
	for _, t := range r.ListNonDeferred() {
		names = append(names, t.Name)
	}
	return names
}

func (s *Server) handleToolsCall(ctx context.Context, req request) response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return response{ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}}
	}

	meta, err := s.tools.Get(params.Name)
	if err != nil {
		return response{ID: req.ID, Result: errorToolResult(fmt.Sprintf("unknown tool: %s", params.Name))}
	}

	if err := s.checkAccess(meta.Category); err != nil {
		return response{ID: req.ID, Result: errorToolResult(err.Error())}
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		return response{ID: req.ID, Result: errorToolResult(fmt.Sprintf("tool %q has no handler", params.Name))}
	}

	s.metrics.IncrementActive(ctx, params.Name)
	start := time.Now()
	text, callErr := handler(ctx, s, params.Arguments)
	s.metrics.DecrementActive(ctx, params.Name)
	s.metrics.RecordInvocation(ctx, params.Name, time.Since(start), callErr)

	if callErr != nil {
		return response{ID: req.ID, Result: errorToolResult(callErr.Error())}
	}
	return response{ID: req.ID, Result: toolCallResult{Content: []contentBlock{{Type: "text", Text: text}}}}
}

func errorToolResult(msg string) toolCallResult {
	return toolCallResult{Content: []contentBlock{{Type: "text", Text: msg}}, IsError: true}
}

// checkAccess gates a tool category against the server's configured role
// using the static RBAC table (spec.md §4.15). Discovery and prompt-read
// tools are always allowed.
func (s *Server) checkAccess(category ToolCategory) error {
	var perm rbac.Permission
	switch category {
	case CategoryCapture:
		perm = rbac.PermCapture
	case CategoryRecall:
		perm = rbac.PermRecall
	case CategoryMaintenance:
		perm = rbac.PermConsolidate
	default:
		return nil
	}
	result := s.svc.Access().CheckAccess(s.cfg.Role, perm)
	if !result.Granted {
		return errs.OperationFailed("mcp.access", fmt.Errorf("%s", result.Reason))
	}
	return nil
}

// domainFromArgs extracts the routing domain (spec.md §4.11) from a tool
// call's common arguments. Scope defaults to project.
func domainFromArgs(args map[string]any) model.Domain {
	scope := model.ScopeProject
	if v, ok := args["scope"].(string); ok && v != "" {
		scope = model.Scope(v)
	}
	d := model.Domain{Scope: scope}
	if v, ok := args["project"].(string); ok {
		d.Project = v
	}
	if v, ok := args["repository"].(string); ok {
		d.Repository = v
	}
	if v, ok := args["organization"].(string); ok {
		d.Organization = v
	}
	return d
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Close releases the underlying Services container's open backends.
func (s *Server) Close() error {
	return s.svc.Close()
}
