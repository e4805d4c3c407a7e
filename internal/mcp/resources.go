package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zircote/subcog/internal/model"
)

// scopeResources enumerates the fixed, always-listable resources (spec.md
// §6.1): one domain-summary resource per scope plus a help topic. Individual
// memory and prompt resources exist (subcog://{domain}/{namespace}/{id},
// subcog://{domain}/_prompts/{name}) but are addressed directly rather than
// enumerated, since a domain's memory set is unbounded.
var scopeResources = []model.Scope{model.ScopeProject, model.ScopeUser, model.ScopeOrg, model.ScopeGlobal}

func (s *Server) handleResourcesList(req request) response {
	resources := make([]resourceDescriptor, 0, len(scopeResources)+1)
	for _, scope := range scopeResources {
		resources = append(resources, resourceDescriptor{
			URI:         fmt.Sprintf("subcog://%s/_", scope),
			Name:        fmt.Sprintf("%s domain summary", scope),
			Description: "Memory counts by namespace for the " + string(scope) + " domain.",
			MIMEType:    "application/json",
		})
	}
	resources = append(resources, resourceDescriptor{
		URI:         "subcog://help",
		Name:        "help",
		Description: "Overview of subcog's tools and how to use them.",
		MIMEType:    "text/plain",
	})
	return response{ID: req.ID, Result: resourcesListResult{Resources: resources}}
}

func (s *Server) handleResourcesRead(ctx context.Context, req request) response {
	var params resourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return response{ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}}
	}

	text, mime, err := s.readResource(ctx, params.URI)
	if err != nil {
		return response{ID: req.ID, Error: &rpcError{Code: codeInternalError, Message: err.Error()}}
	}
	return response{ID: req.ID, Result: resourcesReadResult{Contents: []resourceContents{
		{URI: params.URI, MIMEType: mime, Text: text},
	}}}
}

func (s *Server) readResource(ctx context.Context, uri string) (text, mime string, err error) {
	if uri == "subcog://help" {
		return instructions, "text/plain", nil
	}

	scope, segments, ok := parseResourceURI(uri)
	if !ok {
		return "", "", fmt.Errorf("malformed resource uri: %s", uri)
	}
	domain := model.Domain{Scope: scope}

	switch {
	case len(segments) == 1 && segments[0] == "_":
		return s.readDomainSummary(ctx, domain)
	case len(segments) == 2 && segments[0] == "_prompts":
		return s.readPromptResource(ctx, domain, segments[1])
	case len(segments) == 2:
		return s.readMemoryResource(ctx, domain, segments[1])
	default:
		return "", "", fmt.Errorf("unrecognized resource uri: %s", uri)
	}
}

func (s *Server) readDomainSummary(ctx context.Context, domain model.Domain) (string, string, error) {
	d, err := s.svc.For(ctx, domain)
	if err != nil {
		return "", "", err
	}
	counts := make(map[string]int, len(model.AllNamespaces))
	for _, ns := range model.AllNamespaces {
		hits, err := d.Backends.Index.ListAll(ctx, model.SearchFilter{
			Namespaces: []model.Namespace{ns},
			Statuses:   []model.Status{model.StatusActive},
		}, 0)
		if err != nil {
			return "", "", err
		}
		counts[string(ns)] = len(hits)
	}
	out, err := json.Marshal(map[string]any{"domain": domain.String(), "by_namespace": counts})
	if err != nil {
		return "", "", err
	}
	return string(out), "application/json", nil
}

func (s *Server) readMemoryResource(ctx context.Context, domain model.Domain, id string) (string, string, error) {
	d, err := s.svc.For(ctx, domain)
	if err != nil {
		return "", "", err
	}
	m, err := d.Backends.Index.GetMemory(ctx, id)
	if err != nil {
		return "", "", err
	}
	out, err := json.Marshal(m)
	if err != nil {
		return "", "", err
	}
	return string(out), "application/json", nil
}

func (s *Server) readPromptResource(ctx context.Context, domain model.Domain, name string) (string, string, error) {
	tmpl, err := s.svc.Prompts().Get(ctx, domain, name)
	if err != nil {
		return "", "", err
	}
	out, err := json.Marshal(tmpl)
	if err != nil {
		return "", "", err
	}
	return string(out), "application/json", nil
}

// parseResourceURI splits "subcog://{domain}/{rest...}" into domain's scope
// and the remaining path segments.
func parseResourceURI(uri string) (model.Scope, []string, bool) {
	const prefix = "subcog://"
	if !strings.HasPrefix(uri, prefix) {
		return "", nil, false
	}
	trimmed := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", nil, false
	}
	scope := model.Scope(parts[0])
	var segments []string
	if len(parts) == 2 && parts[1] != "" {
		segments = strings.Split(parts[1], "/")
	}
	return scope, segments, true
}
