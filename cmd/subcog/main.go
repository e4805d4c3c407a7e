// Command subcog is the CLI surface for the subcog memory service (spec.md
// §6.2): capture, recall, and maintain a domain-scoped memory store, and
// serve the MCP tool/resource/prompt registry over stdio for editor
// integration.
//
// Configuration loads from the TOML document at --config (default
// ~/.config/subcog/config.toml), layered with the SUBCOG_* environment
// variables in spec.md §6.3. See internal/config for details.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/rbac"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	flagScope  string
	flagOrg    string
	flagProj   string
	flagRepo   string
	flagRole   string
	flagJSON   bool
)

func main() {
	err := rootCmd.Execute()
	if svcInst != nil {
		_ = svcInst.Close()
	}
	shutdownTelemetry()
	os.Exit(exitCode(err))
}

var rootCmd = &cobra.Command{
	Use:           "subcog",
	Short:         "Domain-scoped memory for AI coding assistants",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default ~/.config/subcog/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagScope, "scope", "project", "domain scope: project, user, org, or global")
	rootCmd.PersistentFlags().StringVar(&flagOrg, "organization", "", "organization identifier")
	rootCmd.PersistentFlags().StringVar(&flagProj, "project", "", "project identifier (defaults to current directory name)")
	rootCmd.PersistentFlags().StringVar(&flagRepo, "repository", "", "repository identifier")
	rootCmd.PersistentFlags().StringVar(&flagRole, "role", "admin", "RBAC role to act as: admin, operator, user, auditor, read_only")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON output")
}

// exitCode maps a command's returned error to spec.md §6.2's exit codes:
// 0 success, 1 user error, 2 environment error, 3 backend error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "subcog:", err)

	kind, ok := errs.KindOf(err)
	if !ok {
		return 2
	}
	switch kind {
	case errs.KindInvalidInput, errs.KindNotFound, errs.KindSecretDetected, errs.KindFeatureNotEnabled, errs.KindNotImplemented:
		return 1
	case errs.KindBackendUnavailable, errs.KindEmbeddingMismatch, errs.KindOperationFailed:
		return 3
	default:
		return 2
	}
}

// currentDomain resolves the persistent scope/organization/project/repository
// flags into a model.Domain, defaulting project to the working directory's
// base name the way cmd/ctxd's checkpoint commands default project-id.
func currentDomain() model.Domain {
	project := flagProj
	if project == "" && model.Scope(flagScope) == model.ScopeProject {
		if wd, err := os.Getwd(); err == nil {
			project = baseName(wd)
		}
	}
	return model.Domain{
		Scope:        model.Scope(flagScope),
		Organization: flagOrg,
		Project:      project,
		Repository:   flagRepo,
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func currentRole() (rbac.Role, error) {
	switch flagRole {
	case "admin":
		return rbac.RoleAdmin, nil
	case "operator":
		return rbac.RoleOperator, nil
	case "user":
		return rbac.RoleUser, nil
	case "auditor":
		return rbac.RoleAuditor, nil
	case "read_only", "readonly", "read-only":
		return rbac.RoleReadOnly, nil
	default:
		return "", errs.InvalidInputf("unknown role %q", flagRole)
	}
}

func requirePermission(perm rbac.Permission) error {
	role, err := currentRole()
	if err != nil {
		return err
	}
	s := svc()
	if bootstrapErr() != nil {
		return bootstrapErr()
	}
	result := s.Access().CheckAccess(role, perm)
	if !result.Granted {
		return errs.InvalidInputf("%s", result.Reason)
	}
	return nil
}
