package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/insightdash/internal/live"
)

// ErrServerClosed is returned by broadcasts after Run has returned.
var ErrServerClosed = errors.New("feed server closed")

// Close reasons sent to subscribers.
const (
	reasonShutdown = "server shutting down"
	reasonSlow     = "subscriber too slow"
)

// Config controls a Server.
type Config struct {
	SendQueue    int           // Frames buffered per subscriber (default: 64)
	WriteTimeout time.Duration // Per-frame write deadline (default: 5s)
	Welcome      string        // Message of the connection frame
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendQueue:    64,
		WriteTimeout: 5 * time.Second,
		Welcome:      "Welcome to InsightDash live updates",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendQueue < 1 {
		c.SendQueue = d.SendQueue
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Welcome == "" {
		c.Welcome = d.Welcome
	}
	return c
}

// Stats is a point-in-time view of a Server.
type Stats struct {
	Subscribers int64
	Accepted    int64
	Dropped     int64 // closed for falling behind
	Broadcasts  int64
}

// Server is the push endpoint. Run must be running for subscribers to be
// accepted and for broadcasts to be delivered.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	done       chan struct{}

	subscribers atomic.Int64
	accepted    atomic.Int64
	dropped     atomic.Int64
	broadcasts  atomic.Int64
}

// NewServer creates a Server.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg.withDefaults(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:        time.Now,
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
	}
}

// Run owns the subscriber set until ctx is done, then closes every
// subscriber with a going-away frame.
func (s *Server) Run(ctx context.Context) {
	subs := make(map[*subscriber]struct{})

	defer func() {
		for sub := range subs {
			sub.close(reasonShutdown)
		}
		s.subscribers.Store(0)
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-s.register:
			subs[sub] = struct{}{}
			s.subscribers.Store(int64(len(subs)))
			s.accepted.Add(1)
			sub.logger.Info("subscriber connected", "subscribers", len(subs))

		case sub := <-s.unregister:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				sub.close(reasonShutdown)
				s.subscribers.Store(int64(len(subs)))
				sub.logger.Info("subscriber disconnected",
					"subscribers", len(subs),
					"datasets", sub.subscriptions(),
				)
			}

		case msg := <-s.broadcast:
			s.broadcasts.Add(1)
			for sub := range subs {
				if !sub.enqueue(msg) {
					delete(subs, sub)
					sub.close(reasonSlow)
					s.dropped.Add(1)
					sub.logger.Warn("dropping slow subscriber")
				}
			}
			s.subscribers.Store(int64(len(subs)))
		}
	}
}

// ServeHTTP upgrades the request and serves one subscriber until it leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sub := newSubscriber(conn, s.cfg.SendQueue, s.logger)

	// Queue the greeting first so it precedes any broadcast.
	if msg, err := welcomeFrame(s.cfg.Welcome, s.now()); err == nil {
		sub.enqueue(msg)
	}

	select {
	case s.register <- sub:
	case <-s.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go sub.writePump(s.cfg.WriteTimeout)
	s.readPump(sub)
}

// readPump handles inbound frames until the connection fails.
func (s *Server) readPump(sub *subscriber) {
	defer func() {
		select {
		case s.unregister <- sub:
		case <-s.done:
		}
	}()

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sub.logger.Debug("read failed", "error", err)
			}
			return
		}
		s.handle(sub, data)
	}
}

// handle answers one inbound frame. Unknown and malformed frames are ignored.
func (s *Server) handle(sub *subscriber, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		sub.logger.Warn("malformed frame", "error", err)
		return
	}

	var (
		reply []byte
		err   error
	)
	switch in.Type {
	case typeSubscribe:
		sub.subscribe(in.DatasetID)
		sub.logger.Info("dataset subscribed", "dataset_id", in.DatasetID)
		reply, err = subscriptionFrame(in.DatasetID, s.now())
	case typePing:
		reply, err = pongFrame(s.now())
	default:
		sub.logger.Debug("ignoring frame", "type", in.Type)
		return
	}

	if err != nil {
		sub.logger.Error("encode reply", "error", err)
		return
	}
	if !sub.enqueue(reply) {
		sub.logger.Warn("reply dropped", "type", in.Type)
	}
}

// BroadcastDataUpdate sends a data_update frame to every subscriber.
func (s *Server) BroadcastDataUpdate(ctx context.Context, datasetID int64, data live.DataPoint) error {
	msg, err := dataUpdateFrame(datasetID, data, s.now())
	if err != nil {
		return fmt.Errorf("encode data update: %w", err)
	}
	return s.publish(ctx, msg)
}

// BroadcastForecastComplete sends a forecast_complete frame to every subscriber.
func (s *Server) BroadcastForecastComplete(ctx context.Context, datasetID int64, forecast any) error {
	raw, err := json.Marshal(forecast)
	if err != nil {
		return fmt.Errorf("encode forecast: %w", err)
	}
	msg, err := forecastFrame(datasetID, raw, s.now())
	if err != nil {
		return fmt.Errorf("encode forecast complete: %w", err)
	}
	return s.publish(ctx, msg)
}

func (s *Server) publish(ctx context.Context, msg []byte) error {
	select {
	case s.broadcast <- msg:
		return nil
	case <-s.done:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Simulate broadcasts a random data update for each dataset every interval
// until ctx is done.
func (s *Server) Simulate(ctx context.Context, interval time.Duration, datasetIDs []int64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("simulating data updates", "interval", interval, "datasets", datasetIDs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, id := range datasetIDs {
				if err := s.BroadcastDataUpdate(ctx, id, RandomPoint(id, s.now())); err != nil {
					return err
				}
			}
		}
	}
}

var categories = []string{"A", "B", "C"}

// RandomPoint returns a sample observation with a value in [10, 100).
func RandomPoint(datasetID int64, now time.Time) live.DataPoint {
	return live.DataPoint{
		DatasetID: datasetID,
		Value:     10 + rand.Float64()*90,
		Category:  categories[rand.IntN(len(categories))],
		Timestamp: formatTime(now),
	}
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Subscribers: s.subscribers.Load(),
		Accepted:    s.accepted.Load(),
		Dropped:     s.dropped.Load(),
		Broadcasts:  s.broadcasts.Load(),
	}
}
