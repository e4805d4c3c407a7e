package main

import (
	"fmt"
	"text/tabwriter"
	"os"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/rbac"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(namespacesCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory counts by namespace for the current domain",
	RunE:  runStatus,
}

var namespacesCmd = &cobra.Command{
	Use:   "namespaces",
	Short: "List the closed set of memory namespaces",
	RunE:  runNamespaces,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermRecall); err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := svc().For(ctx, currentDomain())
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(model.AllNamespaces))
	total := 0
	for _, ns := range model.AllNamespaces {
		hits, err := d.Backends.Index.ListAll(ctx, model.SearchFilter{
			Namespaces: []model.Namespace{ns},
			Statuses:   []model.Status{model.StatusActive},
		}, 0)
		if err != nil {
			return errs.OperationFailed("cli.status.list", err)
		}
		counts[string(ns)] = len(hits)
		total += len(hits)
	}

	if flagJSON {
		return outputJSON(map[string]any{"domain": currentDomain().String(), "total": total, "by_namespace": counts})
	}

	fmt.Printf("domain: %s (%d active memories)\n\n", currentDomain().String(), total)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tCOUNT")
	for _, ns := range model.AllNamespaces {
		fmt.Fprintf(w, "%s\t%d\n", ns, counts[string(ns)])
	}
	return w.Flush()
}

func runNamespaces(cmd *cobra.Command, args []string) error {
	type entry struct {
		Name          string `json:"name"`
		DisplayName   string `json:"display_name"`
		RetentionDays int    `json:"default_retention_days"`
	}
	entries := make([]entry, 0, len(model.AllNamespaces))
	for _, ns := range model.AllNamespaces {
		entries = append(entries, entry{Name: string(ns), DisplayName: ns.DisplayName(), RetentionDays: ns.DefaultRetentionDays()})
	}

	if flagJSON {
		return outputJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tDEFAULT RETENTION (DAYS)")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\n", e.Name, e.DisplayName, e.RetentionDays)
	}
	return w.Flush()
}
