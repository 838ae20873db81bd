package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"agentctl/internal/app"
	"agentctl/internal/config"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Chat with a hosted AI agent that can use local tools",
	Long: `agentctl starts an interactive chat with an agent hosted on an
Assistants-style agent service. Tools offered by an MCP tool host
(a local subprocess or an HTTP endpoint) are declared to the agent
and invoked on its behalf whenever a run asks for them.

Type exit, quit, 離開 or 退出 to leave the chat.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid configuration, failed connections)
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runChat,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newMockToolsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	application, err := app.NewApplication(newAppConfig())
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

// newAppConfig builds the application config from the environment; the chat command
// itself takes no flags.
func newAppConfig() *app.Config {
	return app.NewConfig(os.Getenv(config.EnvConfigPath), false)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
