package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/insightdash/internal/api"
)

// DataFetcher fetches stored data points. *api.Client satisfies it.
type DataFetcher interface {
	GetDatasetData(ctx context.Context, id int64, page api.Page) ([]api.DataPoint, error)
}

// DatasetSource provides the dataset IDs to poll.
type DatasetSource interface {
	Watched() []int64
}

// StaticDatasets is a fixed DatasetSource.
type StaticDatasets []int64

// Watched returns the IDs.
func (s StaticDatasets) Watched() []int64 { return s }

// Handler receives the points fetched for one dataset.
type Handler interface {
	HandleData(datasetID int64, points []api.DataPoint) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(datasetID int64, points []api.DataPoint) error

func (f HandlerFunc) HandleData(datasetID int64, points []api.DataPoint) error {
	return f(datasetID, points)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 5m)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
	PageSize    int           // Points requested per dataset (default: 100)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		PageSize:    100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PageSize < 1 {
		c.PageSize = d.PageSize
	}
	return c
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	Datasets int
	Fetched  int64
	Points   int64
	Errors   int64
	Duration time.Duration
}

// Poller periodically refreshes dataset points over REST. It backs up the
// push channel: points missed while the live connection was down are picked
// up on the next cycle.
type Poller struct {
	cfg      Config
	client   DataFetcher
	datasets DatasetSource
	handler  Handler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client DataFetcher, datasets DatasetSource, handler Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:      cfg.withDefaults(),
		client:   client,
		datasets: datasets,
		handler:  handler,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("dataset poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("dataset poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.PollOnce(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(p.ctx)
		}
	}
}

// PollOnce fetches every watched dataset with bounded concurrency. A failed
// dataset is logged and counted; it does not stop the cycle.
func (p *Poller) PollOnce(ctx context.Context) CycleStats {
	start := time.Now()

	ids := p.datasets.Watched()
	if len(ids) == 0 {
		p.logger.Debug("no datasets to poll")
		return CycleStats{}
	}

	var fetched, points, errs atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := p.pollDataset(ctx, id)
			if err != nil {
				p.logger.Warn("failed to poll dataset",
					"dataset_id", id,
					"error", err,
				)
				errs.Add(1)
				return nil
			}
			fetched.Add(1)
			points.Add(int64(n))
			return nil
		})
	}

	_ = g.Wait()

	stats := CycleStats{
		Datasets: len(ids),
		Fetched:  fetched.Load(),
		Points:   points.Load(),
		Errors:   errs.Load(),
		Duration: time.Since(start),
	}

	p.logger.Info("poll cycle complete",
		"datasets", stats.Datasets,
		"fetched", stats.Fetched,
		"points", stats.Points,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats
}

// pollDataset fetches and handles a single dataset.
func (p *Poller) pollDataset(ctx context.Context, id int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	data, err := p.client.GetDatasetData(ctx, id, api.Page{Limit: p.cfg.PageSize})
	if err != nil {
		return 0, err
	}

	if p.handler != nil {
		if err := p.handler.HandleData(id, data); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}
