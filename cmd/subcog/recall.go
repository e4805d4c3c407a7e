package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/rbac"
	"github.com/zircote/subcog/internal/recall"
)

var (
	recallMode              string
	recallNamespace         string
	recallLimit             int
	recallRaw               bool
	recallIncludeTombstoned bool
	recallEntity            string
)

func init() {
	rootCmd.AddCommand(recallCmd)
	recallCmd.Flags().StringVar(&recallMode, "mode", "hybrid", "search mode: text, vector, or hybrid")
	recallCmd.Flags().StringVar(&recallNamespace, "namespace", "", "restrict to one namespace")
	recallCmd.Flags().IntVar(&recallLimit, "limit", 20, "maximum results")
	recallCmd.Flags().BoolVar(&recallRaw, "raw", false, "show un-normalized scores")
	recallCmd.Flags().BoolVar(&recallIncludeTombstoned, "include-tombstoned", false, "include tombstoned memories")
	recallCmd.Flags().StringVar(&recallEntity, "entity", "", "restrict to memories tagged with this entity")
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search the domain-scoped memory store",
	Long: `Search the domain-scoped memory store (spec.md §4.7), fusing BM25/FTS and
vector similarity results with reciprocal rank fusion in hybrid mode.

Examples:
  subcog recall "postgres"
  subcog recall "retry budget" --mode text --namespace patterns --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runRecall,
}

func runRecall(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermRecall); err != nil {
		return err
	}

	mode := recall.Mode(recallMode)
	filter := model.SearchFilter{IncludeTombstoned: recallIncludeTombstoned}
	if recallNamespace != "" {
		filter.Namespaces = []model.Namespace{model.Namespace(recallNamespace)}
	}
	if recallEntity != "" {
		filter.TagsAny = []string{recallEntity}
	}

	d, err := svc().For(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}

	result, err := d.Recall.Search(cmd.Context(), args[0], mode, filter, recallLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		return outputJSON(result)
	}

	if len(result.Memories) == 0 {
		fmt.Println("no memories found")
		return nil
	}
	for _, hit := range result.Memories {
		score := hit.Score
		if recallRaw {
			score = hit.RawScore
		}
		fmt.Printf("%-8s %.4f  %s\n", hit.Memory.Namespace, score, hit.Memory.URN())
		fmt.Printf("         %s\n", truncate(hit.Memory.Content, 120))
	}
	fmt.Printf("\n%d result(s) in %dms\n", result.TotalCount, result.ExecutionTimeMs)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
