package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reillywatson/dorastats/internal/api"
	"github.com/reillywatson/dorastats/internal/cache"
	"github.com/reillywatson/dorastats/internal/config"
	"github.com/reillywatson/dorastats/internal/feed"
	"github.com/reillywatson/dorastats/internal/logging"
	"github.com/reillywatson/dorastats/internal/source"
)

// setup loads the config and builds the logger and the cached feed client
func setup() (*config.Config, *slog.Logger, *feed.CachedClient, cache.Cache, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	c, err := cache.New(cfg.Cache.Backend, cfg.Cache.Dir)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("error creating cache: %w", err)
	}
	feeds := feed.NewCachedClient(feed.NewClient(cfg.Feeds.Locations), c, cfg.Feeds.CacheTTL, logger)
	return cfg, logger, feeds, c, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, feeds, c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	watch := cfg.Snapshot.Watch
	if cmd.Flags().Changed("watch") {
		watch, _ = cmd.Flags().GetBool("watch")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder := source.NewHolder(cfg.Snapshot.Location, nil, logger)
	// a failed first load is served as 503 until a reload succeeds
	_ = holder.Reload(ctx)
	if watch {
		go func() {
			if err := holder.Watch(ctx); err != nil {
				logger.Error("snapshot watch stopped", "error", err)
			}
		}()
	}

	srv := api.NewServer(cfg.Addr(), logger, &api.Handlers{
		Snapshots: holder,
		Feeds:     feeds,
		Log:       logger,
	})

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errc
}
