package cmd

import (
	"fmt"
	"io"
	"strings"

	"agentctl/internal/app"
	"agentctl/internal/toolhost"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

const maxDescriptionWidth = 72

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered by the configured tool host",
		Long: `Connects to the configured MCP tool host, performs the handshake,
prints the tools it offers and disconnects. No agent is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			application, err := app.NewApplication(newAppConfig())
			if err != nil {
				return err
			}
			descs, err := application.ListTools(ctx)
			if err != nil {
				return err
			}
			printTools(cmd.OutOrStdout(), descs)
			return nil
		},
	}
}

// printTools renders one row per tool, aligned on display width so wide runes line up.
func printTools(w io.Writer, descs []toolhost.Descriptor) {
	if len(descs) == 0 {
		fmt.Fprintln(w, "The tool host offers no tools.")
		return
	}

	nameWidth := runewidth.StringWidth("NAME")
	for _, d := range descs {
		if n := runewidth.StringWidth(d.Name); n > nameWidth {
			nameWidth = n
		}
	}

	fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight("NAME", nameWidth), "DESCRIPTION")
	for _, d := range descs {
		desc := strings.Join(strings.Fields(d.Description), " ")
		if runewidth.StringWidth(desc) > maxDescriptionWidth {
			desc = runewidth.Truncate(desc, maxDescriptionWidth, "…")
		}
		fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(d.Name, nameWidth), desc)
	}
}
