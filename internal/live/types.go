package live

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// ErrTransportClosed is returned by a Transport used after Close.
var ErrTransportClosed = errors.New("transport closed")

// Config configures a Client.
type Config struct {
	URL                  string        // Push endpoint, e.g. ws://localhost:8001/api/v1/ws/live-data
	MaxReconnectAttempts int           // Consecutive reconnects before giving up
	ReconnectBaseDelay   time.Duration // Delay for attempt n is base * n
	PingInterval         time.Duration // Keepalive control ping interval (0 = disabled)
	WriteTimeout         time.Duration // Write deadline for sends
	HandshakeTimeout     time.Duration // WebSocket handshake timeout
	Header               http.Header   // Extra handshake headers (e.g. Authorization)
}

// DefaultConfig returns the dashboard defaults: 3 attempts, 5s base delay.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   5 * time.Second,
		PingInterval:         30 * time.Second,
		WriteTimeout:         5 * time.Second,
		HandshakeTimeout:     10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	return c
}

// State is the connection state of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outbound message types.
const (
	TypeSubscribe = "subscribe"
	TypePing      = "ping"
)

// SubscribeMessage asks the server for updates on a dataset.
type SubscribeMessage struct {
	Type      string `json:"type"`
	DatasetID int64  `json:"dataset_id"`
	Timestamp string `json:"timestamp"`
}

// PingMessage is an application-level keepalive; the server answers with "pong".
type PingMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// frame is the inbound wire envelope.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// isoMillis matches JavaScript's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
