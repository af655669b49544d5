package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rickgao/insightdash/internal/buffer"
	"github.com/rickgao/insightdash/internal/live"
	"github.com/rickgao/insightdash/internal/realtime"
	"github.com/rickgao/insightdash/internal/writer"
)

// liveStatus is the part of *live.Client the health endpoint reports on.
type liveStatus interface {
	State() live.State
	Attempts() int
	URL() string
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthDeps are the components reported by /health. points, pointWriter
// and db are nil when persistence is disabled.
type healthDeps struct {
	client      liveStatus
	exhausted   *atomic.Bool
	window      *realtime.Window
	tracker     *realtime.Tracker
	points      *buffer.Growable[realtime.Point]
	pointWriter *writer.PointWriter
	db          pinger
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(deps healthDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Live connection
		state := deps.client.State()
		health.Components["live"] = map[string]any{
			"url":      deps.client.URL(),
			"state":    state.String(),
			"attempts": deps.client.Attempts(),
		}
		switch {
		case deps.exhausted != nil && deps.exhausted.Load():
			health.Status = "unhealthy"
		case state != live.StateOpen:
			health.Status = "degraded"
		}

		// Realtime window
		stats := deps.tracker.Stats()
		health.Components["realtime"] = map[string]any{
			"datasets":  deps.window.Sizes(),
			"accepted":  stats.Accepted,
			"ignored":   stats.Ignored,
			"malformed": stats.Malformed,
			"forecasts": stats.Forecasts,
		}

		// Persistence
		if deps.db != nil {
			if err := deps.db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}
		if deps.points != nil {
			bs := deps.points.Stats()
			health.Components["buffer"] = map[string]any{
				"len":     bs.Len,
				"cap":     bs.Cap,
				"limit":   bs.Limit,
				"dropped": bs.Dropped,
			}
		}
		if deps.pointWriter != nil {
			ws := deps.pointWriter.Stats()
			health.Components["writer"] = map[string]any{
				"inserts":   ws.Inserts,
				"conflicts": ws.Conflicts,
				"flushes":   ws.Flushes,
				"errors":    ws.Errors,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/window", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("dataset"), 10, 64)
		if err != nil || id < 1 {
			http.Error(w, "dataset query parameter must be a positive integer", http.StatusBadRequest)
			return
		}

		n := deps.window.Size()
		if v := r.URL.Query().Get("n"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}

		resp := map[string]any{
			"dataset_id": id,
			"points":     deps.window.Latest(id, n),
		}
		if f, ok := deps.window.Forecast(id); ok {
			resp["forecast"] = f
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	return mux
}
