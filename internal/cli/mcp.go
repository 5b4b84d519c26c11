package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/internal/mcp"
	"github.com/matzehuels/text2block/pkg/pipeline"
)

// mcpCommand creates the mcp command.
func (c *CLI) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long: `Mcp serves the text2block.generate and text2block.render tools over the Model
Context Protocol on stdin and stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, c.config(), pipeline.BuildOptions{})
			if err != nil {
				return err
			}
			defer runner.Close()

			c.Logger.Info("mcp server listening on stdio")
			return mcp.NewServer(mcp.Deps{Runner: runner, Logger: c.Logger}).Serve(ctx)
		},
	}
}
