package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/pkg/dot"
)

// sanitizeCommand creates the sanitize command.
func (c *CLI) sanitizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize [file]",
		Short: "Print the DOT description recovered from raw generator output",
		Long: `Sanitize drops everything before the first graph or digraph keyword, replaces
characters outside the DOT allow-list with spaces and trims trailing
whitespace. It prints what would be sent to the renderer. Reads stdin when no
file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readSource(cmd, path)
			if err != nil {
				return err
			}
			desc, err := dot.Sanitize(raw)
			if err != nil {
				return err
			}
			c.Logger.Debug("sanitized", "keyword", desc.Keyword(), "in", len(raw), "out", desc.Len())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), desc.String())
			return err
		},
	}
}
