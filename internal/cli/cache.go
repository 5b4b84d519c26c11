package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/text2block/pkg/cache"
	"github.com/matzehuels/text2block/pkg/pipeline"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			w := cmd.OutOrStdout()
			if cfg.Cache.Backend == cache.BackendNone {
				printInfo(w, "Caching is disabled")
				return nil
			}

			store, err := pipeline.OpenCache(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				printWarning(w, "The %s cache backend cannot be cleared", cfg.Cache.Backend)
				return nil
			}
			count, err := clearer.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess(w, "Cleared %d cached results", count)
			if fc, ok := store.(*cache.FileCache); ok {
				printDetail(w, "Directory: %s", fc.Dir())
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where results are cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			w := cmd.OutOrStdout()
			switch cfg.Cache.Backend {
			case cache.BackendNone:
				printInfo(w, "Caching is disabled")
			case cache.BackendRedis:
				prefix := cfg.Cache.Redis.Prefix
				if prefix == "" {
					prefix = cache.DefaultRedisPrefix
				}
				fmt.Fprintf(w, "redis://%s/%d %s*\n", cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, prefix)
			default:
				dir, err := cfg.CacheDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				fmt.Fprintln(w, dir)
			}
			return nil
		},
	}
}
