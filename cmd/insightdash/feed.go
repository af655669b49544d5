package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rickgao/insightdash/internal/feed"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Run a local push endpoint",
	Long: `Run a local push endpoint that speaks the live-update protocol.

Clients receive a connection frame on connect, get subscription
confirmations and pongs, and every broadcast data update. When datasets
are configured (feed.datasets or --dataset) a random point is broadcast
for each of them every feed.tick_interval.

Example:
  insightdash feed -c insightdash.yaml
  insightdash feed --dataset 1 --dataset 2`,
	RunE: runFeed,
}

func init() {
	rootCmd.AddCommand(feedCmd)

	feedCmd.Flags().Int64Slice("dataset", nil, "dataset id to simulate (repeatable, adds to feed.datasets)")
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	extra, _ := cmd.Flags().GetInt64Slice("dataset")
	datasets := mergeDatasets(cfg.Feed.Datasets, extra)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := feed.NewServer(feed.DefaultConfig(), logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Feed.Path, server)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"feed":   server.Stats(),
		})
	})

	httpServer := &http.Server{
		Addr:    cfg.Feed.ListenAddr,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		server.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting feed server", "addr", cfg.Feed.ListenAddr, "path", cfg.Feed.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("feed server: %w", err)
		}
		return nil
	})

	if len(datasets) > 0 {
		g.Go(func() error {
			err := server.Simulate(gctx, cfg.Feed.TickInterval, datasets)
			if errors.Is(err, context.Canceled) || errors.Is(err, feed.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("feed stopped", "broadcasts", server.Stats().Broadcasts)
	return err
}
