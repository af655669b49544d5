package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/insightdash/internal/api"
	"github.com/rickgao/insightdash/internal/buffer"
	"github.com/rickgao/insightdash/internal/live"
	"github.com/rickgao/insightdash/internal/realtime"
)

// executeCmd runs the root command with args and returns captured output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "insightdash.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "insightdash dev") {
		t.Errorf("output = %q", out)
	}
}

func TestRunValidate_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  ws_url: wss://dash.example.com/api/v1/ws/live-data
live:
  datasets: [1, 2]
`)

	out, err := executeCmd(t, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}

	for _, phrase := range []string{
		"Config is valid!",
		"Push endpoint: wss://dash.example.com/api/v1/ws/live-data",
		"Reconnect:     3 attempts, 5s base delay",
		"Datasets:      [1 2]",
		"Persistence:   disabled",
	} {
		if !strings.Contains(out, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, out)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "api:\n  ws_url: http://dash.example.com\n")

	if _, err := executeCmd(t, "validate", "-c", path); err == nil {
		t.Fatal("expected error for http ws_url")
	}
}

func TestDatasetsList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/" {
			t.Errorf("path = %s, want /datasets/", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cli-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[{"id":3,"name":"Sales","data_type":"timeseries","is_public":true,"created_at":"2026-01-01T00:00:00"}]`))
	}))
	defer server.Close()

	path := writeConfig(t, "api:\n  rest_url: "+server.URL+"\n  token: cli-token\n")

	out, err := executeCmd(t, "datasets", "-c", path, "--limit", "5")
	if err != nil {
		t.Fatalf("datasets error = %v", err)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Sales") || !strings.Contains(out, "timeseries") {
		t.Errorf("output = %q", out)
	}
}

func TestLoginSavesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if r.Form.Get("username") != "alice" || r.Form.Get("password") != "secret" {
				t.Errorf("form = %v", r.Form)
			}
			w.Write([]byte(`{"access_token":"fresh-token","token_type":"bearer"}`))
		case "/auth/users/me":
			if got := r.Header.Get("Authorization"); got != "Bearer fresh-token" {
				t.Errorf("Authorization = %q", got)
			}
			w.Write([]byte(`{"id":1,"email":"alice@example.com","username":"alice"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tokenPath := filepath.Join(t.TempDir(), "token")
	path := writeConfig(t, "api:\n  rest_url: "+server.URL+"\n  token_path: "+tokenPath+"\n")
	t.Setenv(passwordEnv, "secret")

	out, err := executeCmd(t, "login", "-c", path, "-u", "alice")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, "logged in as alice") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if strings.TrimSpace(string(data)) != "fresh-token" {
		t.Errorf("token file = %q, want fresh-token", data)
	}

	if _, err := executeCmd(t, "logout", "-c", path); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if _, err := os.Stat(tokenPath); !os.IsNotExist(err) {
		t.Errorf("token file still exists after logout: %v", err)
	}
}

func TestMergeDatasets(t *testing.T) {
	got := mergeDatasets([]int64{4, 1}, []int64{2, 4})
	if want := []int64{1, 2, 4}; !slices.Equal(got, want) {
		t.Errorf("mergeDatasets = %v, want %v", got, want)
	}
	if got := mergeDatasets(nil, nil); len(got) != 0 {
		t.Errorf("mergeDatasets(nil, nil) = %v, want empty", got)
	}
}

func TestBackfillHandler(t *testing.T) {
	window := realtime.NewWindow(10)
	points := buffer.New[realtime.Point](4, 100)
	h := backfillHandler(window, points)

	data := []api.DataPoint{
		{Timestamp: "2026-03-01T10:00:02", Value: 3},
		{Timestamp: "2026-03-01T10:00:00", Value: 1},
		{Timestamp: "not a time", Value: 99},
		{Timestamp: "2026-03-01T10:00:01", Value: 2},
	}
	if err := h.HandleData(7, data); err != nil {
		t.Fatalf("HandleData: %v", err)
	}

	latest := window.Latest(7, 0)
	if len(latest) != 3 {
		t.Fatalf("window len = %d, want 3", len(latest))
	}
	if latest[0].Value != 3 || latest[2].Value != 1 {
		t.Errorf("window not newest first: %+v", latest)
	}
	if points.Len() != 3 {
		t.Errorf("buffer len = %d, want 3", points.Len())
	}

	// A dataset already in the window is only persisted.
	if err := h.HandleData(7, data[:1]); err != nil {
		t.Fatalf("HandleData: %v", err)
	}
	if window.Len(7) != 3 {
		t.Errorf("window len = %d, want 3 after second poll", window.Len(7))
	}
	if points.Len() != 4 {
		t.Errorf("buffer len = %d, want 4", points.Len())
	}
}

func TestBackfillHandler_NoBuffer(t *testing.T) {
	window := realtime.NewWindow(10)
	h := backfillHandler(window, nil)

	if err := h.HandleData(2, []api.DataPoint{{Timestamp: "2026-03-01T10:00:00", Value: 1}}); err != nil {
		t.Fatalf("HandleData: %v", err)
	}
	if window.Len(2) != 1 {
		t.Errorf("window len = %d, want 1", window.Len(2))
	}
}

type fakeLive struct {
	state    live.State
	attempts int
}

func (f fakeLive) State() live.State { return f.state }
func (f fakeLive) Attempts() int     { return f.attempts }
func (f fakeLive) URL() string       { return "ws://feed.test/ws" }

func healthFixture(state live.State) (healthDeps, *atomic.Bool) {
	src := live.New(live.DefaultConfig(), nil)
	window := realtime.NewWindow(5)
	var exhausted atomic.Bool
	return healthDeps{
		client:    fakeLive{state: state, attempts: 2},
		exhausted: &exhausted,
		window:    window,
		tracker:   realtime.NewTracker(src, window, nil, nil),
		points:    buffer.New[realtime.Point](4, 10),
	}, &exhausted
}

func getHealth(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		state      live.State
		exhausted  bool
		wantCode   int
		wantStatus string
	}{
		{"open", live.StateOpen, false, http.StatusOK, "healthy"},
		{"reconnecting", live.StateClosed, false, http.StatusOK, "degraded"},
		{"exhausted", live.StateClosed, true, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, exhausted := healthFixture(tt.state)
			exhausted.Store(tt.exhausted)

			code, body := getHealth(t, createHealthHandler(deps))
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}

			components := body["components"].(map[string]any)
			liveComp := components["live"].(map[string]any)
			if liveComp["state"] != tt.state.String() {
				t.Errorf("live.state = %v, want %s", liveComp["state"], tt.state)
			}
			if _, ok := components["buffer"]; !ok {
				t.Error("missing buffer component")
			}
			if _, ok := components["database"]; ok {
				t.Error("database component reported without a database")
			}
		})
	}
}

func TestDebugWindow(t *testing.T) {
	deps, _ := healthFixture(live.StateOpen)
	deps.window.Add(realtime.Point{DatasetID: 3, Value: 42, ObservedAt: time.Unix(100, 0).UTC()})
	h := createHealthHandler(deps)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/window?dataset=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}

	var body struct {
		DatasetID int64            `json:"dataset_id"`
		Points    []realtime.Point `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.DatasetID != 3 || len(body.Points) != 1 || body.Points[0].Value != 42 {
		t.Errorf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/window?dataset=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400 for bad dataset", rec.Code)
	}
}
