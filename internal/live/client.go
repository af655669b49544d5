package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Client maintains a best-effort, self-healing connection to the push endpoint.
//
// A Client is created once per session and shared by whoever needs live updates;
// it is safe for concurrent use. Listeners run on the goroutine that produced the
// event (the read loop for frames, the caller or reconnect timer for lifecycle events).
type Client struct {
	cfg       Config
	logger    *slog.Logger
	dialer    Dialer
	scheduler Scheduler
	now       func() time.Time

	listeners *registry

	mu        sync.Mutex
	state     State
	conn      Transport
	gen       uint64 // bumped by every open and Disconnect; stale dials and read loops compare against it
	attempts  int
	exhausted bool
	manual    bool // set by Disconnect, cleared by Reset
	timer     Timer
	ctx       context.Context // used by reconnect attempts
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithScheduler replaces the time.AfterFunc based reconnect scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		c.scheduler = s
	}
}

// WithClock sets the clock used for outbound timestamps and receive times.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a Client for cfg.URL. No connection is opened until Connect.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	logger = logger.With("url", cfg.URL)

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		scheduler: timeScheduler{},
		now:       time.Now,
		listeners: newRegistry(),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(cfg, logger)
	}
	return c
}

// Connect opens the connection. It is a no-op after Disconnect (until Reset)
// and while a connection is already open or being opened. Failures are
// reported as KindError/KindDisconnected events and feed the reconnect policy.
//
// ctx bounds the dial and any automatic reconnects that follow; it does not
// bound the lifetime of an established connection.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		c.logger.Debug("connect skipped, manually disconnected")
		return
	}
	if state := c.state; state == StateConnecting || state == StateOpen {
		c.mu.Unlock()
		c.logger.Debug("connect skipped, already connected", "state", state)
		return
	}
	if c.exhausted {
		c.attempts = 0
		c.exhausted = false
	}
	c.ctx = ctx
	c.mu.Unlock()

	c.open(ctx)
}

// Disconnect stops all connection activity: it closes the open connection,
// cancels a pending reconnect, and blocks Connect until Reset is called.
// A dial still in flight is discarded when it returns. KindDisconnected is
// emitted here when an open connection was released.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.gen++
	conn := c.conn
	c.conn = nil
	if c.state != StateIdle {
		c.state = StateClosed
	}
	timer := c.timer
	c.timer = nil
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if conn != nil {
		c.logger.Info("disconnecting websocket")
		if err := conn.Close(); err != nil {
			c.logger.Debug("close transport", "error", err)
		}
		c.logger.Info("websocket disconnected")
		c.emit(Event{Kind: KindDisconnected})
	}
}

// Reset clears the manual-disconnect flag and the reconnect attempt counter.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual = false
	c.attempts = 0
	c.exhausted = false
}

// Send encodes msg as JSON and writes it if the connection is open.
// Otherwise the message is dropped.
func (c *Client) Send(msg any) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Warn("websocket is not connected, dropping message")
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode message", "error", err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		c.logger.Warn("failed to send message", "error", err)
	}
}

// Subscribe asks the server for updates on a dataset.
func (c *Client) Subscribe(datasetID int64) {
	c.Send(SubscribeMessage{
		Type:      TypeSubscribe,
		DatasetID: datasetID,
		Timestamp: formatTimestamp(c.now()),
	})
}

// Ping sends an application-level ping; the reply arrives as KindPong.
func (c *Client) Ping() {
	c.Send(PingMessage{
		Type:      TypePing,
		Timestamp: formatTimestamp(c.now()),
	})
}

// On registers fn for events of the given kind.
func (c *Client) On(kind Kind, fn Listener) ListenerID {
	return c.listeners.add(kind, fn)
}

// Off removes the registration id. It reports whether one was removed.
func (c *Client) Off(kind Kind, id ListenerID) bool {
	return c.listeners.remove(kind, id)
}

// RemoveAllListeners discards every registration.
func (c *Client) RemoveAllListeners() {
	c.listeners.reset()
}

// ListenerCount returns the number of listeners registered for kind.
func (c *Client) ListenerCount(kind Kind) int {
	return c.listeners.count(kind)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// Attempts returns the number of reconnects scheduled since the last successful open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// URL returns the push endpoint address.
func (c *Client) URL() string {
	return c.cfg.URL
}

// open dials and, on success, starts the read loop.
func (c *Client) open(ctx context.Context) {
	c.mu.Lock()
	if c.manual || c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		c.mu.Lock()
		if c.gen != gen {
			// Disconnect arrived while dialing.
			c.mu.Unlock()
			c.logger.Debug("discarding failed dial", "error", err)
			return
		}
		c.state = StateClosed
		c.mu.Unlock()

		c.logger.Warn("websocket connect failed", "error", err)

		c.emit(Event{Kind: KindError, Err: err})
		c.emit(Event{Kind: KindDisconnected})
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect arrived while dialing; a later open may own the state now.
		c.mu.Unlock()
		c.logger.Debug("discarding stale connection")
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("websocket connected")
	c.emit(Event{Kind: KindConnected})

	go c.readLoop(conn, gen)
}

// readLoop dispatches frames until the transport ends. Frames read after
// the handle went stale are dropped.
func (c *Client) readLoop(conn Transport, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, gen, err)
			return
		}
		if !c.current(gen) {
			continue
		}
		c.dispatch(data, c.now())
	}
}

// current reports whether gen still identifies the owned connection.
func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Client) handleClose(conn Transport, gen uint64, err error) {
	c.mu.Lock()
	stale := c.gen != gen || c.conn != conn
	if !stale {
		c.conn = nil
		c.state = StateClosed
	}
	c.mu.Unlock()

	// Disconnect already released this handle and reported it.
	if stale {
		c.logger.Debug("stale connection closed", "error", err)
		return
	}

	conn.Close()

	if !isExpectedClose(err) {
		c.logger.Warn("websocket error", "error", err)
		c.emit(Event{Kind: KindError, Err: err})
	}

	c.logger.Info("websocket disconnected")
	c.emit(Event{Kind: KindDisconnected})
	c.scheduleReconnect()
}

// scheduleReconnect applies the linear backoff policy after an unplanned close.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.exhausted = true
		attempts := c.attempts
		c.mu.Unlock()

		c.logger.Error("max reconnection attempts reached", "attempts", attempts)
		c.emit(Event{Kind: KindMaxReconnectAttemptsReached})
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := c.cfg.ReconnectBaseDelay * time.Duration(attempt)
	ctx := c.ctx
	c.timer = c.scheduler.AfterFunc(delay, func() {
		c.reconnect(ctx)
	})
	c.mu.Unlock()

	c.logger.Info("attempting to reconnect",
		"attempt", attempt,
		"max_attempts", c.cfg.MaxReconnectAttempts,
		"delay", delay,
	)
}

// reconnect runs when a backoff timer fires.
func (c *Client) reconnect(ctx context.Context) {
	c.mu.Lock()
	manual := c.manual
	c.timer = nil
	c.mu.Unlock()

	if manual {
		return
	}
	if err := ctx.Err(); err != nil {
		c.logger.Debug("reconnect abandoned", "error", err)
		return
	}

	c.open(ctx)
}

// dispatch decodes one frame and emits it. Malformed frames are dropped.
func (c *Client) dispatch(data []byte, receivedAt time.Time) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("failed to parse websocket message", "error", err)
		return
	}

	kind := kindForType(f.Type)
	c.logger.Debug("websocket message received", "type", f.Type, "kind", kind)

	ev := Event{
		Kind:       kind,
		Type:       f.Type,
		Payload:    f.Payload,
		ReceivedAt: receivedAt,
	}
	if kind == KindMessage {
		ev.Payload = json.RawMessage(data)
	}

	c.emit(ev)
}

// emit calls each listener for ev.Kind in registration order.
func (c *Client) emit(ev Event) {
	for _, l := range c.listeners.snapshot(ev.Kind) {
		c.invoke(l, ev)
	}
}

func (c *Client) invoke(l listenerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error in websocket event listener",
				"kind", ev.Kind,
				"listener", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(ev)
}
