package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zircote/subcog/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.AddCommand(mcpServeCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool/resource/prompt registry over stdio (spec.md §4.13)",
	Long: `Speak hand-rolled JSON-RPC 2.0 over stdin/stdout, exposing the
subcog_capture/subcog_recall/subcog_status tool surface plus prompt_* and
maintenance tools, gated by --role through the RBAC permission table
(spec.md §4.15).`,
	RunE: runMCPServe,
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	role, err := currentRole()
	if err != nil {
		return err
	}
	if bootstrapErr() != nil {
		return bootstrapErr()
	}

	cfg := mcp.DefaultConfig()
	cfg.Role = role
	if logger, err := buildLogger(svcCfg); err == nil {
		cfg.Logger = logger.Underlying()
	}

	server, err := mcp.NewServer(cfg, svc())
	if err != nil {
		return err
	}
	return server.Run(cmd.Context(), os.Stdin, os.Stdout)
}
