package mcp

import (
	"context"
	"encoding/json"

	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/prompts"
)

// handlePromptsList and handlePromptsGet implement the MCP "prompts"
// capability (distinct from the prompt_* tools, which are invoked like any
// other tool): these expose internal/prompts.Store's templates as
// discoverable, renderable prompts for clients that support the dedicated
// prompts/list and prompts/get methods. Both resolve their domain from the
// project scope; a client wanting a different scope uses the prompt_*
// tools instead, which accept scope/project/repository/organization
// arguments directly.
func (s *Server) handlePromptsList(ctx context.Context, req request) response {
	list, err := s.svc.Prompts().List(ctx, model.Domain{Scope: model.ScopeProject})
	if err != nil {
		return response{ID: req.ID, Error: &rpcError{Code: codeInternalError, Message: err.Error()}}
	}

	descriptors := make([]promptDescriptor, 0, len(list))
	for _, tmpl := range list {
		args := make([]promptArgument, 0, len(tmpl.Variables))
		for _, v := range tmpl.Variables {
			args = append(args, promptArgument{Name: v.Name, Description: v.Description, Required: v.Kind == model.VariableUser})
		}
		descriptors = append(descriptors, promptDescriptor{Name: tmpl.Name, Arguments: args})
	}
	return response{ID: req.ID, Result: promptsListResult{Prompts: descriptors}}
}

func (s *Server) handlePromptsGet(ctx context.Context, req request) response {
	var params promptGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return response{ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}}
	}

	domain := model.Domain{Scope: model.ScopeProject}
	tmpl, err := s.svc.Prompts().Get(ctx, domain, params.Name)
	if err != nil {
		return response{ID: req.ID, Error: &rpcError{Code: codeInternalError, Message: err.Error()}}
	}

	vars := prompts.Vars{}
	for k, v := range params.Arguments {
		vars[k] = v
	}
	rendered := prompts.Render(tmpl.Body, vars)

	return response{ID: req.ID, Result: promptGetResult{
		Messages: []promptMessage{{Role: "user", Content: contentBlock{Type: "text", Text: rendered}}},
	}}
}
