package realtime

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/insightdash/internal/buffer"
	"github.com/rickgao/insightdash/internal/live"
)

// Source is the subset of *live.Client a Tracker listens on.
type Source interface {
	On(kind live.Kind, fn live.Listener) live.ListenerID
	Off(kind live.Kind, id live.ListenerID) bool
}

// TrackerStats counts events seen by a Tracker.
type TrackerStats struct {
	Accepted  int64
	Ignored   int64 // dataset not watched
	Malformed int64
	Forecasts int64
}

// Tracker feeds data_update events from a live client into a Window and,
// when an output buffer is set, into that buffer.
type Tracker struct {
	src    Source
	window *Window
	out    *buffer.Growable[Point]
	logger *slog.Logger

	mu      sync.Mutex
	watched map[int64]struct{}
	ids     map[live.Kind]live.ListenerID
	stats   TrackerStats
}

// NewTracker creates a detached Tracker. An empty watch list accepts every
// dataset. out may be nil.
func NewTracker(src Source, window *Window, out *buffer.Growable[Point], logger *slog.Logger, datasetIDs ...int64) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		src:     src,
		window:  window,
		out:     out,
		logger:  logger,
		watched: make(map[int64]struct{}, len(datasetIDs)),
		ids:     make(map[live.Kind]live.ListenerID),
	}
	for _, id := range datasetIDs {
		t.watched[id] = struct{}{}
	}
	return t
}

// Attach registers the Tracker's listeners. Calling it twice is a no-op.
func (t *Tracker) Attach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.ids) > 0 {
		return
	}
	t.ids[live.KindDataUpdate] = t.src.On(live.KindDataUpdate, t.onDataUpdate)
	t.ids[live.KindForecastComplete] = t.src.On(live.KindForecastComplete, t.onForecastComplete)
}

// Detach removes the Tracker's listeners from the source.
func (t *Tracker) Detach() {
	t.mu.Lock()
	ids := t.ids
	t.ids = make(map[live.Kind]live.ListenerID)
	t.mu.Unlock()

	for kind, id := range ids {
		t.src.Off(kind, id)
	}
}

// Watch adds a dataset to the watch list.
func (t *Tracker) Watch(datasetID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watched[datasetID] = struct{}{}
}

// Unwatch removes a dataset from the watch list.
func (t *Tracker) Unwatch(datasetID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.watched, datasetID)
}

// Watched returns the watch list, ascending. Empty means every dataset.
func (t *Tracker) Watched() []int64 {
	t.mu.Lock()
	ids := make([]int64, 0, len(t.watched))
	for id := range t.watched {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Stats returns the current counters.
func (t *Tracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tracker) accepts(datasetID int64) bool {
	if len(t.watched) == 0 {
		return true
	}
	_, ok := t.watched[datasetID]
	return ok
}

func (t *Tracker) onDataUpdate(ev live.Event) {
	var u live.DataUpdate
	if err := ev.Decode(&u); err != nil {
		t.logger.Warn("malformed data update", "error", err)
		t.count(func(s *TrackerStats) { s.Malformed++ })
		return
	}

	p := pointFromUpdate(u, ev.ReceivedAt)

	t.mu.Lock()
	ok := t.accepts(p.DatasetID)
	if ok {
		t.stats.Accepted++
	} else {
		t.stats.Ignored++
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	t.window.Add(p)
	if t.out != nil {
		t.out.Push(p)
	}
}

func (t *Tracker) onForecastComplete(ev live.Event) {
	var f live.ForecastComplete
	if err := ev.Decode(&f); err != nil {
		t.logger.Warn("malformed forecast", "error", err)
		t.count(func(s *TrackerStats) { s.Malformed++ })
		return
	}

	t.mu.Lock()
	ok := t.accepts(f.DatasetID)
	if ok {
		t.stats.Forecasts++
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	t.window.SetForecast(f)
	t.logger.Info("forecast complete", "dataset_id", f.DatasetID)
}

func (t *Tracker) count(fn func(*TrackerStats)) {
	t.mu.Lock()
	fn(&t.stats)
	t.mu.Unlock()
}
