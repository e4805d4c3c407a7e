package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/prompts"
	"github.com/zircote/subcog/internal/rbac"
)

var (
	promptBody string
	promptVars []string
)

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.AddCommand(promptSaveCmd, promptListCmd, promptGetCmd, promptRunCmd, promptDeleteCmd, promptExportCmd)

	promptSaveCmd.Flags().StringVar(&promptBody, "body", "", "template body with {{var}} placeholders (required)")
	_ = promptSaveCmd.MarkFlagRequired("body")

	promptRunCmd.Flags().StringArrayVar(&promptVars, "var", nil, `variable substitution as name=value, repeatable`)
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage reusable prompt/context templates",
}

var promptSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a prompt template",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptSave,
}

var promptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt templates in the current domain",
	RunE:  runPromptList,
}

var promptGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a prompt template",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptGet,
}

var promptRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Render a prompt template with substitution variables",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptRun,
}

var promptDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a prompt template",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptDelete,
}

var promptExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every prompt template in the current domain as JSON",
	RunE:  runPromptExport,
}

func runPromptSave(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermCreatePrompt); err != nil {
		return err
	}
	tmpl := model.PromptTemplate{
		Name:   args[0],
		Domain: currentDomain(),
		Body:   promptBody,
	}
	if err := svc().Prompts().Save(cmd.Context(), tmpl); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", prompts.URN(currentDomain(), args[0]))
	return nil
}

func runPromptList(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermRunPrompt); err != nil {
		return err
	}
	list, err := svc().Prompts().List(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}
	if flagJSON {
		return outputJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("no prompt templates saved")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tVARIABLES")
	for _, tmpl := range list {
		fmt.Fprintf(w, "%s\t%d\t%d\n", tmpl.Name, tmpl.Version, len(tmpl.Variables))
	}
	return w.Flush()
}

func runPromptGet(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermRunPrompt); err != nil {
		return err
	}
	tmpl, err := svc().Prompts().Get(cmd.Context(), currentDomain(), args[0])
	if err != nil {
		return err
	}
	if flagJSON {
		return outputJSON(tmpl)
	}
	fmt.Println(tmpl.Body)
	return nil
}

func runPromptRun(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermRunPrompt); err != nil {
		return err
	}
	tmpl, err := svc().Prompts().Get(cmd.Context(), currentDomain(), args[0])
	if err != nil {
		return err
	}
	vars, err := parsePromptVars(promptVars)
	if err != nil {
		return err
	}
	fmt.Println(prompts.Render(tmpl.Body, vars))
	return nil
}

func runPromptDelete(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermDeletePrompt); err != nil {
		return err
	}
	ok, err := svc().Prompts().Delete(cmd.Context(), currentDomain(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("no prompt named %q\n", args[0])
		return nil
	}
	fmt.Printf("deleted %s\n", prompts.URN(currentDomain(), args[0]))
	return nil
}

func runPromptExport(cmd *cobra.Command, args []string) error {
	if err := requirePermission(rbac.PermRunPrompt); err != nil {
		return err
	}
	list, err := svc().Prompts().List(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}
	return outputJSON(list)
}

// parsePromptVars turns repeated --var name=value flags into prompts.Vars.
func parsePromptVars(raw []string) (prompts.Vars, error) {
	vars := prompts.Vars{}
	for _, kv := range raw {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			return nil, errs.InvalidInputf("--var must be name=value, got %q", kv)
		}
		vars[kv[:idx]] = kv[idx+1:]
	}
	return vars, nil
}
