package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rickgao/insightdash/internal/api"
	"github.com/rickgao/insightdash/internal/buffer"
	"github.com/rickgao/insightdash/internal/database"
	"github.com/rickgao/insightdash/internal/live"
	"github.com/rickgao/insightdash/internal/poller"
	"github.com/rickgao/insightdash/internal/realtime"
	"github.com/rickgao/insightdash/internal/version"
	"github.com/rickgao/insightdash/internal/writer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	initialBuffer   = 64
)

var errReconnectExhausted = errors.New("live updates unavailable: max reconnection attempts reached")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live dataset updates",
	Long: `Connect to the push endpoint and follow live dataset updates.

The command will:
  - Subscribe to every configured dataset each time the connection opens
  - Keep the latest points per dataset in memory (see /debug/window)
  - Persist points to PostgreSQL when a database is configured
  - Refresh datasets from the REST API when a token is available
  - Serve /health on the configured health port

It exits with an error once the reconnect attempts are exhausted.

Example:
  insightdash watch -c insightdash.yaml
  insightdash watch --dataset 1 --dataset 4`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Int64Slice("dataset", nil, "dataset id to follow (repeatable, adds to live.datasets)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	extra, _ := cmd.Flags().GetInt64Slice("dataset")
	for _, id := range extra {
		if id < 1 {
			return fmt.Errorf("invalid dataset id %d", id)
		}
	}
	datasets := mergeDatasets(cfg.Live.Datasets, extra)

	logger.Info("starting watch",
		"version", version.Version,
		"commit", version.Commit,
		"ws_url", cfg.API.WSURL,
		"datasets", datasets,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := newSession(cfg, logger)
	client := newLiveClient(cfg, session, logger)

	window := realtime.NewWindow(cfg.Realtime.WindowSize)

	// Points only need buffering when something drains them.
	var points *buffer.Growable[realtime.Point]
	if cfg.Database.Enabled() {
		points = buffer.New[realtime.Point](initialBuffer, cfg.Realtime.BufferSize)
	}

	tracker := realtime.NewTracker(client, window, points, logger, datasets...)
	tracker.Attach()
	defer tracker.Detach()

	var exhausted atomic.Bool
	exhaustedCh := make(chan struct{})
	var exhaustedOnce sync.Once
	watchLifecycle(client, tracker, logger, func() {
		exhausted.Store(true)
		exhaustedOnce.Do(func() { close(exhaustedCh) })
	})

	deps := healthDeps{
		client:    client,
		exhausted: &exhausted,
		window:    window,
		tracker:   tracker,
		points:    points,
	}

	// Persistence
	var pointWriter *writer.PointWriter
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database connected")

		pointWriter = writer.NewPointWriter(writer.Config{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
		}, points, pool, logger)
		if err := pointWriter.Start(ctx); err != nil {
			return fmt.Errorf("start point writer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := pointWriter.Stop(shutdownCtx); err != nil {
				logger.Error("final flush failed", "error", err)
			}
		}()

		deps.db = pool
		deps.pointWriter = pointWriter
	}

	// REST refresh
	if session.Valid() {
		apiClient := newAPIClient(cfg, session, logger)
		p := poller.New(poller.Config{
			Interval:    cfg.Poller.Interval,
			Concurrency: cfg.Poller.Concurrency,
			Timeout:     cfg.Poller.Timeout,
		}, apiClient, tracker, backfillHandler(window, points), logger)

		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			p.Stop(shutdownCtx)
		}()
	} else {
		logger.Info("no api token, dataset refresh disabled")
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(deps),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-exhaustedCh:
			return errReconnectExhausted
		}
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down...")
		client.Disconnect()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	client.Connect(gctx)

	err = g.Wait()
	logger.Info("watch stopped")
	return err
}

// watchLifecycle logs connection events, resubscribes on every open and
// calls onExhausted when the client gives up.
func watchLifecycle(client *live.Client, tracker *realtime.Tracker, logger *slog.Logger, onExhausted func()) {
	client.On(live.KindConnected, func(live.Event) {
		for _, id := range tracker.Watched() {
			client.Subscribe(id)
		}
	})

	client.On(live.KindSubscriptionConfirmed, func(ev live.Event) {
		var msg live.SubscriptionConfirmed
		if err := ev.Decode(&msg); err != nil {
			logger.Warn("bad subscription confirmation", "error", err)
			return
		}
		logger.Info("subscription confirmed", "dataset_id", msg.DatasetID, "status", msg.Status)
	})

	client.On(live.KindConnectionMessage, func(ev live.Event) {
		var msg live.ConnectionMessage
		if err := ev.Decode(&msg); err != nil {
			logger.Warn("bad connection message", "error", err)
			return
		}
		logger.Info("server message", "status", msg.Status, "message", msg.Message)
	})

	client.On(live.KindPong, func(ev live.Event) {
		logger.Debug("pong", "received_at", ev.ReceivedAt)
	})

	client.On(live.KindMessage, func(ev live.Event) {
		logger.Debug("unhandled message", "type", ev.Type)
	})

	client.On(live.KindMaxReconnectAttemptsReached, func(live.Event) {
		onExhausted()
	})
}

// backfillHandler persists polled points and seeds the window of any
// dataset that has not yet received a live update.
func backfillHandler(window *realtime.Window, points *buffer.Growable[realtime.Point]) poller.Handler {
	return poller.HandlerFunc(func(datasetID int64, data []api.DataPoint) error {
		pts := poller.ToPoints(datasetID, data, time.Now())

		if points != nil {
			for _, p := range pts {
				points.Push(p)
			}
		}

		if window.Len(datasetID) > 0 {
			return nil
		}
		slices.SortStableFunc(pts, func(a, b realtime.Point) int {
			return a.ObservedAt.Compare(b.ObservedAt)
		})
		for _, p := range pts {
			window.Add(p)
		}
		return nil
	})
}

// mergeDatasets returns the sorted union of the configured and flag ids.
func mergeDatasets(configured, extra []int64) []int64 {
	ids := slices.Concat(configured, extra)
	slices.Sort(ids)
	return slices.Compact(ids)
}
