package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
	"github.com/matzehuels/text2block/pkg/repair"
)

// renderOptions holds the render command flags.
type renderOptions struct {
	renderFlags
	repair bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOptions{}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render DOT source to an image",
		Long: `Render sanitizes DOT source (anything before the first graph keyword is
dropped) and renders it once. With --repair, a rejected render is sent to the
repair generator together with the diagnostic until it renders or the attempt
budget is spent; this needs a configured API key.

Reads stdin when no file is given.`,
		Example: `  text2block render graph.dot -o graph.svg
  pbpaste | text2block render --repair -o fixed.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runRender(cmd.Context(), cmd, path, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "repair rejected source with the configured generator")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, cmd *cobra.Command, path string, opts renderOptions) error {
	source, err := readSource(cmd, path)
	if err != nil {
		return err
	}
	cfg := c.config()
	output, err := opts.apply(&cfg)
	if err != nil {
		return err
	}
	dest := render.NewFileDestination(output)
	prog := newProgress(c.Logger)

	var out *repair.Outcome
	if opts.repair {
		runner, err := c.newRunner(ctx, cfg, pipeline.BuildOptions{NoCache: true, NoHistory: true})
		if err != nil {
			return err
		}
		defer runner.Close()
		out, err = runner.Repair(ctx, source, dest)
		if err != nil {
			return err
		}
	} else {
		renderer, err := c.newRenderer(cfg.Render)
		if err != nil {
			return err
		}
		out, err = pipeline.RenderSource(ctx, renderer, source, dest)
		if err != nil {
			return err
		}
	}
	prog.done("Rendered", "path", out.Artifact.Location, "bytes", out.Artifact.Size())

	w := cmd.OutOrStdout()
	printSuccess(w, "Rendered %s", out.Artifact.Location)
	printAttempts(w, out.Attempts, out.Duration, false)
	return nil
}
