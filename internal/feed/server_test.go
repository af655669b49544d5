package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/insightdash/internal/live"
)

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()

	s := NewServer(cfg, nil)
	s.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return s, ts
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads one frame and decodes its payload into payload.
func readFrame(t *testing.T, conn *websocket.Conn, payload any) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f struct {
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if f.Timestamp != "2024-01-15T12:00:00.000Z" {
		t.Errorf("timestamp = %q", f.Timestamp)
	}
	if payload != nil {
		if err := json.Unmarshal(f.Payload, payload); err != nil {
			t.Fatalf("unmarshal payload %s: %v", f.Payload, err)
		}
	}
	return f.Type
}

func waitForSubscribers(t *testing.T, s *Server, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Stats().Subscribers != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", s.Stats().Subscribers, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_Welcome(t *testing.T) {
	_, ts := startServer(t, Config{Welcome: "hello"})
	conn := dial(t, ts)

	var msg live.ConnectionMessage
	if typ := readFrame(t, conn, &msg); typ != live.TypeConnection {
		t.Fatalf("type = %q, want %q", typ, live.TypeConnection)
	}
	if msg.Status != "connected" || msg.Message != "hello" {
		t.Errorf("welcome = %+v", msg)
	}
}

func TestServer_SubscribeAndPing(t *testing.T) {
	_, ts := startServer(t, DefaultConfig())
	conn := dial(t, ts)
	readFrame(t, conn, nil)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","dataset_id":7,"timestamp":"2024-01-15T12:00:00.000Z"}`))

	var confirmed live.SubscriptionConfirmed
	if typ := readFrame(t, conn, &confirmed); typ != live.TypeSubscriptionConfirmed {
		t.Fatalf("type = %q, want %q", typ, live.TypeSubscriptionConfirmed)
	}
	if confirmed.DatasetID != 7 || confirmed.Status != "subscribed" {
		t.Errorf("confirmed = %+v", confirmed)
	}

	// Malformed and unknown frames get no reply; the ping after them does.
	conn.WriteMessage(websocket.TextMessage, []byte(`{broken`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unsubscribe"}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))

	var pong live.Pong
	if typ := readFrame(t, conn, &pong); typ != live.TypePong {
		t.Fatalf("type = %q, want %q", typ, live.TypePong)
	}
	if pong.Timestamp == "" {
		t.Error("pong timestamp is empty")
	}
}

func TestServer_Broadcast(t *testing.T) {
	s, ts := startServer(t, DefaultConfig())
	a := dial(t, ts)
	b := dial(t, ts)
	readFrame(t, a, nil)
	readFrame(t, b, nil)
	waitForSubscribers(t, s, 2)

	ctx := context.Background()
	point := live.DataPoint{DatasetID: 1, Value: 42, Category: "B"}
	if err := s.BroadcastDataUpdate(ctx, 1, point); err != nil {
		t.Fatalf("BroadcastDataUpdate: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		var u live.DataUpdate
		if typ := readFrame(t, conn, &u); typ != live.TypeDataUpdate {
			t.Fatalf("type = %q, want %q", typ, live.TypeDataUpdate)
		}
		if u.DatasetID != 1 || u.Data.Value != 42 || u.Data.Category != "B" {
			t.Errorf("update = %+v", u)
		}
	}

	if err := s.BroadcastForecastComplete(ctx, 1, map[string]any{"predictions": []int{1, 2}}); err != nil {
		t.Fatalf("BroadcastForecastComplete: %v", err)
	}

	var f live.ForecastComplete
	if typ := readFrame(t, a, &f); typ != live.TypeForecastComplete {
		t.Fatalf("type = %q, want %q", typ, live.TypeForecastComplete)
	}
	if f.DatasetID != 1 || !strings.Contains(string(f.Forecast), "predictions") {
		t.Errorf("forecast = %+v", f)
	}

	if got := s.Stats().Broadcasts; got != 2 {
		t.Errorf("Broadcasts = %d, want 2", got)
	}
}

func TestServer_DisconnectUnregisters(t *testing.T) {
	s, ts := startServer(t, DefaultConfig())
	conn := dial(t, ts)
	readFrame(t, conn, nil)
	waitForSubscribers(t, s, 1)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitForSubscribers(t, s, 0)
}

func TestServer_DropsSlowSubscriber(t *testing.T) {
	s := NewServer(Config{SendQueue: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// No write pump drains this subscriber, so its queue fills at once.
	sub := &subscriber{
		logger:   slog.Default(),
		send:     make(chan []byte, 1),
		datasets: make(map[int64]struct{}),
	}
	s.register <- sub

	for i := 0; i < 2; i++ {
		if err := s.BroadcastDataUpdate(ctx, 1, live.DataPoint{Value: float64(i)}); err != nil {
			t.Fatalf("broadcast %d: %v", i, err)
		}
	}

	waitForSubscribers(t, s, 0)
	if got := s.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}

	// The queued frame is still delivered before the queue closes.
	if _, ok := <-sub.send; !ok {
		t.Error("queued frame lost")
	}
	if _, ok := <-sub.send; ok {
		t.Error("send channel not closed")
	}
}

func TestServer_ShutdownClosesSubscribers(t *testing.T) {
	s := NewServer(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	ts := httptest.NewServer(s)
	defer ts.Close()

	conn := dial(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	waitForSubscribers(t, s, 1)

	cancel()

	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read error = %v, want going-away close", err)
	}

	if err := s.BroadcastDataUpdate(context.Background(), 1, live.DataPoint{}); err != ErrServerClosed {
		t.Errorf("broadcast after shutdown = %v, want ErrServerClosed", err)
	}
}

func TestServer_LiveClient(t *testing.T) {
	s, ts := startServer(t, DefaultConfig())

	cfg := live.DefaultConfig()
	cfg.URL = wsURL(ts)
	c := live.New(cfg, nil)

	updates := make(chan live.DataUpdate, 4)
	confirmed := make(chan int64, 4)
	c.On(live.KindDataUpdate, func(ev live.Event) {
		var u live.DataUpdate
		if err := ev.Decode(&u); err == nil {
			updates <- u
		}
	})
	c.On(live.KindSubscriptionConfirmed, func(ev live.Event) {
		var sc live.SubscriptionConfirmed
		if err := ev.Decode(&sc); err == nil {
			confirmed <- sc.DatasetID
		}
	})

	c.Connect(context.Background())
	defer c.Disconnect()

	c.Subscribe(3)
	select {
	case id := <-confirmed:
		if id != 3 {
			t.Errorf("confirmed dataset = %d, want 3", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription confirmation")
	}

	if err := s.BroadcastDataUpdate(context.Background(), 3, RandomPoint(3, time.Now())); err != nil {
		t.Fatalf("BroadcastDataUpdate: %v", err)
	}

	select {
	case u := <-updates:
		if u.DatasetID != 3 || u.Data.Value < 10 || u.Data.Value >= 100 {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no data update")
	}
}

func TestSimulate(t *testing.T) {
	s, ts := startServer(t, DefaultConfig())
	conn := dial(t, ts)
	readFrame(t, conn, nil)
	waitForSubscribers(t, s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Simulate(ctx, 10*time.Millisecond, []int64{5})

	var u live.DataUpdate
	if typ := readFrame(t, conn, &u); typ != live.TypeDataUpdate {
		t.Fatalf("type = %q, want %q", typ, live.TypeDataUpdate)
	}
	if u.DatasetID != 5 || u.Data.Category == "" {
		t.Errorf("update = %+v", u)
	}
}

func TestRandomPoint(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := RandomPoint(1, time.Now())
		if p.Value < 10 || p.Value >= 100 {
			t.Fatalf("Value = %v, want [10, 100)", p.Value)
		}
		switch p.Category {
		case "A", "B", "C":
		default:
			t.Fatalf("Category = %q", p.Category)
		}
	}
}

func TestDefaultConfigApplied(t *testing.T) {
	if got := (Config{}).withDefaults(); got != DefaultConfig() {
		t.Errorf("withDefaults() = %+v, want %+v", got, DefaultConfig())
	}
}
