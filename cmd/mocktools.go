package cmd

import (
	"os"

	"agentctl/internal/mocktools"
	"agentctl/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	mockToolsSSEAddr string
	mockToolsDebug   bool
)

func newMockToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-tools <script.yaml>",
		Short: "Serve scripted tools as an MCP tool host",
		Long: `Serves the tools described in a YAML script over MCP, on stdio by
default or over SSE with --sse. Point toolHost.command at
"agentctl mock-tools <script.yaml>" to try the chat without a real
tool host.`,
		Args: cobra.ExactArgs(1),
		RunE: runMockTools,
	}

	cmd.Flags().StringVar(&mockToolsSSEAddr, "sse", "", "Serve over SSE on this address (e.g. localhost:8090) instead of stdio")
	cmd.Flags().BoolVar(&mockToolsDebug, "debug", false, "Log every tool call to stderr")
	return cmd
}

func runMockTools(cmd *cobra.Command, args []string) error {
	level := logging.LevelWarn
	if mockToolsDebug {
		level = logging.LevelDebug
	}
	// stdout carries the protocol
	logging.InitForCLI(level, os.Stderr)

	cfg, err := mocktools.LoadConfig(args[0])
	if err != nil {
		return err
	}
	srv, err := mocktools.NewServer(cfg, rootCmd.Version)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if mockToolsSSEAddr != "" {
		return srv.ServeSSE(ctx, mockToolsSSEAddr)
	}
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
}
