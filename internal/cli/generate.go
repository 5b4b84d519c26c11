package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/pkg/config"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
)

// renderFlags are the output flags shared by generate and render.
type renderFlags struct {
	output      string
	format      string
	layout      string
	maxAttempts int
}

func (f *renderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default diagram.<format>)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: png, jpg, svg")
	cmd.Flags().StringVar(&f.layout, "layout", "", "graphviz layout: dot, neato, fdp, sfdp, circo, twopi, osage, patchwork")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "maximum renders per request, including the first")
}

// apply overrides cfg with the flags that were set and returns the output
// path.
func (f *renderFlags) apply(cfg *config.Config) (string, error) {
	if f.format != "" {
		cfg.Render.Format = f.format
	}
	if f.layout != "" {
		cfg.Render.Layout = f.layout
	}
	if f.maxAttempts != 0 {
		cfg.Repair.MaxAttempts = f.maxAttempts
	}
	rc, err := pipeline.RenderConfig(cfg.Render)
	if err != nil {
		return "", err
	}
	cfg.Render.Format = string(rc.Format)
	if f.output != "" {
		return f.output, nil
	}
	return "diagram." + string(rc.Format), nil
}

// generateOptions holds the generate command flags.
type generateOptions struct {
	renderFlags
	explanationOut string
	provider       string
	model          string
	explainMode    string
	noCache        bool
	refresh        bool
	json           bool
}

// generateOutput is the --json document.
type generateOutput struct {
	Path        string        `json:"path"`
	Format      render.Format `json:"format"`
	Explanation any           `json:"explanation"`
	Description string        `json:"description"`
	Attempts    int           `json:"attempts"`
	Cached      bool          `json:"cached"`
	RequestID   string        `json:"request_id,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [request...]",
		Short: "Generate a diagram and explanation from a plain-language request",
		Long: `Generate asks the configured model for a Graphviz description of the request,
renders it, and repairs it with the renderer's diagnostics until it renders or
the attempt budget is spent. The explanation is printed when it is ready.

Pass "-" to read the request from stdin.`,
		Example: `  text2block generate "the TCP three-way handshake"
  text2block generate -o handshake.svg --explain-mode structured "TCP handshake"
  echo "a state machine for a traffic light" | text2block generate -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := intentFromArgs(cmd, args)
			if err != nil {
				return err
			}
			return c.runGenerate(cmd.Context(), cmd, intent, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.explanationOut, "explanation-out", "", "also write the explanation to this file")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "generator provider: openai, openrouter, groq, anthropic")
	cmd.Flags().StringVar(&opts.model, "model", "", "generator model")
	cmd.Flags().StringVar(&opts.explainMode, "explain-mode", "", "explanation mode: text or structured")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "neither read nor write the result cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore a cached result and store the new one")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")

	return cmd
}

func (c *CLI) runGenerate(ctx context.Context, cmd *cobra.Command, intent string, opts generateOptions) error {
	cfg := c.config()
	if opts.provider != "" && opts.provider != cfg.LLM.Provider {
		cfg.LLM.Provider = opts.provider
		cfg.LLM.BaseURL = ""
		cfg.LLM.APIKeyEnv = ""
		cfg.LLM.Model = ""
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}
	if opts.explainMode != "" {
		cfg.Explain.Mode = opts.explainMode
	}
	output, err := opts.apply(&cfg)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, pipeline.BuildOptions{NoCache: opts.noCache})
	if err != nil {
		return err
	}
	defer runner.Close()

	spin := newSpinner(ctx, cmd.ErrOrStderr(), "Generating diagram...")
	spin.Start()
	res, err := runner.Execute(ctx, pipeline.Options{
		Intent:  intent,
		Dest:    render.NewFileDestination(output),
		Refresh: opts.refresh,
		NoCache: opts.noCache,
	})
	spin.Stop()
	if err != nil {
		return err
	}

	if opts.explanationOut != "" {
		if err := os.WriteFile(opts.explanationOut, []byte(res.Explanation.Text()+"\n"), 0o644); err != nil {
			return fmt.Errorf("write explanation: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.json {
		return writeGenerateJSON(out, res)
	}
	printGenerateResult(out, res)
	if opts.explanationOut != "" {
		printFile(out, opts.explanationOut)
	}
	return nil
}

func writeGenerateJSON(w io.Writer, res *pipeline.Result) error {
	doc := generateOutput{
		Path:        res.Artifact.Location,
		Format:      res.Artifact.Format,
		Explanation: res.Explanation.Overview,
		Description: res.Description.String(),
		Attempts:    len(res.Attempts),
		Cached:      res.Cached,
		RequestID:   res.RecordID,
		Duration:    res.Duration,
	}
	if res.Explanation.Structured {
		doc.Explanation = res.Explanation
	}
	return writeJSON(w, doc)
}

func printGenerateResult(w io.Writer, res *pipeline.Result) {
	printSuccess(w, "Rendered %s", res.Artifact.Location)
	printAttempts(w, res.Attempts, res.Duration, res.Cached)
	fmt.Fprintln(w)
	printExplanation(w, res.Explanation.Overview, res.Explanation.Details)
	if res.RecordID != "" {
		fmt.Fprintln(w)
		printNextStep(w, "Inspect later", "text2block history show "+res.RecordID)
	}
}
