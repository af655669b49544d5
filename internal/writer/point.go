package writer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/insightdash/internal/buffer"
	"github.com/rickgao/insightdash/internal/realtime"
)

// pointNamespace scopes the name-based UUIDs of stored points.
var pointNamespace = uuid.MustParse("3b0f6c3e-5d0a-4c4e-9a55-7f1e2d8c6a10")

const insertPointSQL = `
	INSERT INTO realtime_points (id, dataset_id, value, category, observed_at, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// BatchSender sends a queued batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PointWriter consumes points from a buffer and writes them to realtime_points.
type PointWriter struct {
	cfg    Config
	logger *slog.Logger

	input *buffer.Growable[realtime.Point]
	db    BatchSender

	batch   []pointRow
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// pointRow is one realtime_points row.
type pointRow struct {
	ID         uuid.UUID
	DatasetID  int64
	Value      float64
	Category   *string
	ObservedAt time.Time
	ReceivedAt time.Time
}

// NewPointWriter creates a PointWriter.
func NewPointWriter(
	cfg Config,
	input *buffer.Growable[realtime.Point],
	db BatchSender,
	logger *slog.Logger,
) *PointWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &PointWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]pointRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming points and writing to the database.
func (w *PointWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("point writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer and flushes whatever is still batched or buffered.
func (w *PointWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping point writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("point writer stopped")
	case <-ctx.Done():
		w.logger.Warn("point writer stop timed out")
		return ctx.Err()
	}

	for _, p := range w.input.Drain(0) {
		w.add(p)
	}
	return w.flush(ctx)
}

// Stats returns current metrics.
func (w *PointWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop moves points from the input buffer into the batch.
func (w *PointWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		points := w.input.Drain(w.cfg.BatchSize)
		if len(points) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(pollInterval):
				continue
			}
		}

		for _, p := range points {
			if w.add(p) {
				w.flushLogged(w.ctx)
			}
		}

		if w.ctx.Err() != nil {
			return
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *PointWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushLogged(w.ctx)
		}
	}
}

// add transforms p into the batch and reports whether the batch is full.
func (w *PointWriter) add(p realtime.Point) bool {
	row := w.transform(p)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a Point to a pointRow.
func (w *PointWriter) transform(p realtime.Point) pointRow {
	var category *string
	if p.Category != "" {
		c := p.Category
		category = &c
	}
	return pointRow{
		ID:         PointID(p),
		DatasetID:  p.DatasetID,
		Value:      p.Value,
		Category:   category,
		ObservedAt: p.ObservedAt.UTC(),
		ReceivedAt: p.ReceivedAt.UTC(),
	}
}

// PointID derives a stable row ID from a point's dataset, observation time,
// value and category, so the same observation delivered twice is stored once.
func PointID(p realtime.Point) uuid.UUID {
	key := fmt.Sprintf("%d|%d|%x|%s",
		p.DatasetID,
		p.ObservedAt.UnixNano(),
		math.Float64bits(p.Value),
		p.Category,
	)
	return uuid.NewSHA1(pointNamespace, []byte(key))
}

func (w *PointWriter) flushLogged(ctx context.Context) {
	if err := w.flush(ctx); err != nil {
		w.logger.Error("batch insert failed", "error", err)
	}
}

// flush writes the current batch to the database.
func (w *PointWriter) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	batch := w.batch
	w.batch = make([]pointRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return fmt.Errorf("insert %d points: %w", len(batch), err)
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed points",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *PointWriter) batchInsert(ctx context.Context, rows []pointRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertPointSQL, r.ID, r.DatasetID, r.Value, r.Category, r.ObservedAt, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
