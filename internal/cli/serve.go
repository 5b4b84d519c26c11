package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/internal/server"
	"github.com/matzehuels/text2block/pkg/observability"
	"github.com/matzehuels/text2block/pkg/pipeline"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve runs the HTTP API until interrupted:

  POST /api/analyze        {"prompt": "..."}
  GET  /api/history        recent requests (?limit=N)
  GET  /api/history/{id}   one request
  GET  /healthz            liveness
  GET  /metrics            Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.config()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			prom, err := observability.NewPrometheus(reg)
			if err != nil {
				return err
			}

			runner, err := c.newRunner(ctx, cfg, pipeline.BuildOptions{Hooks: prom.Hooks()})
			if err != nil {
				return err
			}
			defer runner.Close()

			rc, err := pipeline.RenderConfig(cfg.Render)
			if err != nil {
				return err
			}
			srv, err := server.New(runner, server.Options{
				Config:   cfg.Server,
				Format:   rc.Format,
				Registry: reg,
				Logger:   c.Logger,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")

	return cmd
}
