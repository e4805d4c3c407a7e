package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/rbac"
)

var (
	captureNamespace string
	captureTags      string
	captureSource    string
	captureTTL       string
	captureProjectID string
	captureBranch    string
	captureFilePath  string
)

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVar(&captureNamespace, "namespace", "", "memory namespace (required)")
	captureCmd.Flags().StringVar(&captureTags, "tags", "", `comma-separated tags, e.g. "a,b"`)
	captureCmd.Flags().StringVar(&captureSource, "source", "cli", "who/what captured this memory")
	captureCmd.Flags().StringVar(&captureTTL, "ttl", "", "optional TTL duration, e.g. 7d, 30m")
	captureCmd.Flags().StringVar(&captureProjectID, "project-id", "", "project identifier to attach")
	captureCmd.Flags().StringVar(&captureBranch, "branch", "", "git branch to attach")
	captureCmd.Flags().StringVar(&captureFilePath, "file-path", "", "file path to attach")
	_ = captureCmd.MarkFlagRequired("namespace")
}

var captureCmd = &cobra.Command{
	Use:   "capture <content>",
	Short: "Capture a memory into the domain-scoped store",
	Long: `Capture a memory into the domain-scoped store (spec.md §4.6).

Examples:
  subcog capture "use postgres for the catalog service" --namespace decisions
  subcog capture "retry budget is 3 attempts" --namespace patterns --tags "resilience,retry" --ttl 30d`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func runCapture(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermCapture); err != nil {
		return err
	}

	ns, err := model.ParseNamespace(captureNamespace)
	if err != nil {
		return errs.InvalidInput(err)
	}
	ttl, err := parseTTLFlag(captureTTL)
	if err != nil {
		return errs.InvalidInput(err)
	}

	d, err := svc().For(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}

	result, err := d.Capture.Capture(cmd.Context(), capture.Request{
		Content:   args[0],
		Namespace: ns,
		Domain:    currentDomain(),
		Tags:      splitCSV(captureTags),
		Source:    captureSource,
		ProjectID: captureProjectID,
		Branch:    captureBranch,
		FilePath:  captureFilePath,
		TTL:       ttl,
	})
	if err != nil {
		return err
	}

	if flagJSON {
		return outputJSON(result)
	}
	if result.Duplicate {
		fmt.Printf("duplicate (%s) of existing memory %s, not captured\n", result.DuplicateReason, result.URN)
		return nil
	}
	fmt.Printf("captured %s\n", result.URN)
	if result.ContentModified {
		fmt.Println("content was redacted before storage")
	}
	return nil
}
