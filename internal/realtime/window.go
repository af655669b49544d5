package realtime

import (
	"slices"
	"sync"

	"github.com/rickgao/insightdash/internal/live"
)

// DefaultWindowSize is the number of points kept per dataset.
const DefaultWindowSize = 100

// Window holds the newest points of each dataset, bounded per dataset.
// It is safe for concurrent use.
type Window struct {
	size int

	mu        sync.RWMutex
	series    map[int64]*ring
	forecasts map[int64]live.ForecastComplete
}

// NewWindow creates a Window keeping size points per dataset.
func NewWindow(size int) *Window {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &Window{
		size:      size,
		series:    make(map[int64]*ring),
		forecasts: make(map[int64]live.ForecastComplete),
	}
}

// Add records p as the newest point of its dataset, evicting the oldest
// point once the dataset holds Size points.
func (w *Window) Add(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.series[p.DatasetID]
	if !ok {
		r = newRing(w.size)
		w.series[p.DatasetID] = r
	}
	r.add(p)
}

// Latest returns up to n points of a dataset, newest first. n <= 0 returns all.
func (w *Window) Latest(datasetID int64, n int) []Point {
	w.mu.RLock()
	defer w.mu.RUnlock()

	r, ok := w.series[datasetID]
	if !ok {
		return nil
	}
	return r.newest(n)
}

// Len returns the number of points held for a dataset.
func (w *Window) Len(datasetID int64) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if r, ok := w.series[datasetID]; ok {
		return r.count
	}
	return 0
}

// Sizes returns the point count of every dataset seen.
func (w *Window) Sizes() map[int64]int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[int64]int, len(w.series))
	for id, r := range w.series {
		out[id] = r.count
	}
	return out
}

// Datasets returns the IDs of every dataset seen, ascending.
func (w *Window) Datasets() []int64 {
	w.mu.RLock()
	ids := make([]int64, 0, len(w.series))
	for id := range w.series {
		ids = append(ids, id)
	}
	w.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// SetForecast stores the most recent completed forecast of a dataset.
func (w *Window) SetForecast(f live.ForecastComplete) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forecasts[f.DatasetID] = f
}

// Forecast returns the most recent completed forecast of a dataset.
func (w *Window) Forecast(datasetID int64) (live.ForecastComplete, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, ok := w.forecasts[datasetID]
	return f, ok
}

// Size returns the per-dataset capacity.
func (w *Window) Size() int {
	return w.size
}

// ring is a fixed-size circular buffer of points.
type ring struct {
	buf   []Point
	next  int // slot the next point goes into
	count int
}

func newRing(size int) *ring {
	return &ring{buf: make([]Point, size)}
}

func (r *ring) add(p Point) {
	r.buf[r.next] = p
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) newest(n int) []Point {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Point, n)
	idx := r.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}
