package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.AddCommand(hookSessionStartCmd, hookUserPromptSubmitCmd, hookPreCompactCmd, hookStopCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Run one editor lifecycle hook (spec.md §4.12)",
	Long: `Run one editor lifecycle hook: read the hook's JSON input from stdin and
write its JSON response to stdout. Hooks never block capture on network
calls unless explicitly configured.`,
}

var hookUserPromptSubmitCmd = &cobra.Command{
	Use:   "user-prompt-submit",
	Short: "Scan a submitted prompt for capture signals and relevant recalls",
	RunE:  runHookUserPromptSubmit,
}

var hookPreCompactCmd = &cobra.Command{
	Use:   "pre-compact",
	Short: "Extract capture candidates from a conversation excerpt before compaction",
	RunE:  runHookPreCompact,
}

var hookSessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "Opportunistic sync at session start (no-op besides a continue response)",
	RunE:  runHookPassthrough,
}

var hookStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Opportunistic sync at session stop (no-op besides a continue response)",
	RunE:  runHookPassthrough,
}

func runHookUserPromptSubmit(cmd *cobra.Command, args []string) error {
	input, err := readStdin()
	if err != nil {
		return err
	}
	h, err := svc().UserPromptHandler(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}
	out, err := h.Handle(input)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runHookPreCompact(cmd *cobra.Command, args []string) error {
	input, err := readStdin()
	if err != nil {
		return err
	}
	h, err := svc().PreCompactHandler(cmd.Context(), currentDomain())
	if err != nil {
		return err
	}
	out, err := h.Handle(input)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// runHookPassthrough backs session-start and stop: spec.md §4.12 scopes
// these out as "opportunistic sync or no-op", so they only acknowledge the
// hook protocol without invoking a handler.
func runHookPassthrough(cmd *cobra.Command, args []string) error {
	if _, err := readStdin(); err != nil {
		return err
	}
	fmt.Println(`{"continue":true}`)
	return nil
}

func readStdin() (string, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
