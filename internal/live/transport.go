package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one open connection to the push endpoint.
type Transport interface {
	// ReadMessage blocks until the next frame arrives or the connection ends.
	ReadMessage() ([]byte, error)

	// WriteMessage writes a single text frame.
	WriteMessage(data []byte) error

	// Close closes the connection. ReadMessage returns an error afterwards.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// wsDialer dials gorilla/websocket connections.
type wsDialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWebSocketDialer returns the default gorilla/websocket Dialer.
func NewWebSocketDialer(cfg Config, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsDialer{cfg: cfg.withDefaults(), logger: logger}
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, d.cfg.Header)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		conn:         conn,
		writeTimeout: d.cfg.WriteTimeout,
		logger:       d.logger,
		done:         make(chan struct{}),
	}

	if d.cfg.PingInterval > 0 {
		go t.keepalive(d.cfg.PingInterval)
	}

	return t, nil
}

// wsTransport wraps a gorilla connection.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})
	return err
}

// keepalive sends control pings until the transport is closed.
func (t *wsTransport) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.writeTimeout)
			if err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// isExpectedClose reports whether a read error is an orderly end of the
// connection rather than a transport failure.
func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrTransportClosed)
}
