package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/rbac"
)

var dryRun bool

func init() {
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(syncCmd)

	consolidateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report groupings without writing summaries")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what sync would reconcile without writing")
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Summarize similar memories into linked summary nodes",
	Long:  `Group related memories by cosine similarity and summarize each group via the configured LlmProvider (spec.md §4.10).`,
	RunE:  runConsolidate,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the index and vector store from persisted memories",
	Long:  `Repair a domain's index/vector state from its persistence backend, recovering from partial captures left by an abandoned request (spec.md §5 "Cancellation").`,
	RunE:  runReindex,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile a domain's index, vector store, and retention state",
	Long: `Reconcile a domain's on-disk state: reindex from persistence, then run
retention and expiration GC. This is the opportunistic Stop/Session-hook sync
spec.md §4.12 scopes out of the hook protocol itself, exposed here as an
explicit operator command.`,
	RunE: runSync,
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermConsolidate); err != nil {
		return err
	}
	d, err := svc().For(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}
	stats, err := d.Consolidation.ConsolidateMemories(cmd.Context(), dryRun)
	if err != nil {
		return err
	}
	if flagJSON {
		return outputJSON(stats)
	}
	fmt.Printf("groups considered: %d\n", len(stats.Groups))
	fmt.Printf("summaries created: %d\n", stats.SummariesCreated)
	fmt.Printf("source memories folded: %d\n", stats.SourceCount)
	fmt.Printf("contradictions detected: %d\n", stats.Contradictions)
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermMaintenance); err != nil {
		return err
	}
	d, err := svc().For(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}
	count, err := d.Capture.Reindex(cmd.Context())
	if err != nil {
		return err
	}
	if flagJSON {
		return outputJSON(map[string]any{"reindexed": count})
	}
	fmt.Printf("reindexed %d memories\n", count)
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermSync); err != nil {
		return err
	}
	ctx := cmd.Context()
	d, err := svc().For(ctx, currentDomain())
	if err != nil {
		return err
	}

	reindexed, err := d.Capture.Reindex(ctx)
	if err != nil {
		return err
	}
	retention, err := d.Retention.GCExpiredMemories(ctx, dryRun)
	if err != nil {
		return err
	}
	expiration, err := d.Expiration.GCExpiredMemories(ctx, dryRun)
	if err != nil {
		return err
	}

	if flagJSON {
		return outputJSON(map[string]any{
			"reindexed":  reindexed,
			"retention":  retention,
			"expiration": expiration,
		})
	}
	fmt.Printf("reindexed %d memories\n", reindexed)
	fmt.Printf("retention gc: %d tombstoned, %d failed (dry_run=%v)\n", retention.Tombstoned, retention.Failed, retention.DryRun)
	fmt.Printf("expiration gc: %d tombstoned, %d failed (dry_run=%v)\n", expiration.Tombstoned, expiration.Failed, expiration.DryRun)
	return nil
}
