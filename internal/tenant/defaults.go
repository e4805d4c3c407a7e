package tenant

import (
	"errors"
	"fmt"
	"os"

	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/pkg/git"
)

// OrgEnvVar is the environment variable consulted before git-remote parsing
// during org resolution (spec.md §4.11).
const OrgEnvVar = "SUBCOG_ORG"

// ErrOrgUnresolved is returned when org scope is requested but neither
// SUBCOG_ORG nor a parseable git remote can supply an organization id.
var ErrOrgUnresolved = errors.New("tenant: org scope requested but no organization could be resolved")

// ErrOrgScopeDisabled is returned when org scope is resolved or requested
// while the org-scope feature flag is off (spec.md §4.11: "Org scope is
// gated by a feature flag").
var ErrOrgScopeDisabled = errors.New("tenant: org scope is disabled by configuration")

// ResolveOrg determines the organization identifier for org-scoped storage,
// in priority order: the SUBCOG_ORG environment variable, then the "origin"
// remote of the git repository rooted at or above cwd. It returns
// ErrOrgUnresolved if neither source yields an identifier.
func ResolveOrg(cwd string) (string, error) {
	if v := os.Getenv(OrgEnvVar); v != "" {
		return v, nil
	}

	org, err := git.OriginOrg(cwd)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOrgUnresolved, err)
	}
	return org, nil
}

// DefaultForContext picks the default domain scope for an operation that did
// not explicitly specify one: project scope if cwd is inside a git working
// tree, user scope otherwise (spec.md §4.11 default routing).
func DefaultForContext(cwd string) (model.Domain, error) {
	if git.IsRepo(cwd) {
		repo := ""
		if _, _, name, err := git.ParseOriginRemote(cwd); err == nil {
			repo = name
		}
		return model.Domain{Scope: model.ScopeProject, Repository: repo}, nil
	}
	return model.Domain{Scope: model.ScopeUser}, nil
}
