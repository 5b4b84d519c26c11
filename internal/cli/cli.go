package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/pkg/buildinfo"
	"github.com/matzehuels/text2block/pkg/config"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "text2block"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config

	// build and newRenderer construct the pipeline. Tests replace them.
	build       func(ctx context.Context, cfg config.Config, opts pipeline.BuildOptions) (*pipeline.Runner, error)
	newRenderer func(cfg config.RenderConfig) (*render.Renderer, error)
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:      newLogger(w, level),
		cfg:         config.Default(),
		build:       pipeline.Build,
		newRenderer: pipeline.NewRenderer,
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "text2block turns plain-language requests into rendered diagrams",
		Long: `text2block asks a language model for a Graphviz description of what you
describe, renders it, and feeds any rendering error back to the model until
the diagram renders or the attempt budget is spent. Every diagram comes with
an explanation.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.setup() },
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/text2block/config.toml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	// Register all subcommands
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.sanitizeCommand())
	root.AddCommand(c.chatCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.mcpCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads configuration and applies the log settings. --verbose wins
// over log.level.
func (c *CLI) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log.level")
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.Logger.SetLevel(level)
	if cfg.Log.Format == config.LogFormatJSON {
		c.Logger.SetFormatter(log.JSONFormatter)
	}
	return nil
}

// config returns a copy of the loaded configuration for a command to
// override with its flags.
func (c *CLI) config() config.Config {
	return c.cfg
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner validates cfg and builds a pipeline runner logging through the
// CLI logger.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, opts pipeline.BuildOptions) (*pipeline.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = c.Logger
	}
	return c.build(ctx, cfg, opts)
}

// =============================================================================
// Input Helpers
// =============================================================================

// readSource reads path, or stdin when path is "" or "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// intentFromArgs joins args into one request. A single "-" reads stdin.
func intentFromArgs(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		return readSource(cmd, "-")
	}
	return strings.Join(args, " "), nil
}
