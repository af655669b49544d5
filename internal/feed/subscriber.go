package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// subscriber is one connected client. The read side runs in the HTTP
// handler goroutine and the write side drains send.
type subscriber struct {
	id     uuid.UUID
	conn   *websocket.Conn
	logger *slog.Logger

	mu       sync.Mutex
	send     chan []byte
	closed   bool
	reason   string // close reason sent to the client
	datasets map[int64]struct{}
}

func newSubscriber(conn *websocket.Conn, queue int, logger *slog.Logger) *subscriber {
	id := uuid.New()
	return &subscriber{
		id:       id,
		conn:     conn,
		logger:   logger.With("subscriber_id", id.String()),
		send:     make(chan []byte, queue),
		datasets: make(map[int64]struct{}),
	}
}

// enqueue queues msg without blocking. It reports false when the queue is
// full or the subscriber is closed.
func (s *subscriber) enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// close ends the write side after it drains what is queued.
func (s *subscriber) close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.reason = reason
		close(s.send)
	}
}

func (s *subscriber) subscribe(datasetID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[datasetID] = struct{}{}
}

func (s *subscriber) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.datasets)
}

// writePump writes queued frames until the queue is closed, then sends a
// close frame.
func (s *subscriber) writePump(writeTimeout time.Duration) {
	defer s.conn.Close()

	for msg := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("write failed", "error", err)
			return
		}
	}

	s.mu.Lock()
	reason := s.reason
	s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, reason))
}
