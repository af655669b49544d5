package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL              = "http://localhost:8000/api/v1"
	DefaultWSURL                = "ws://localhost:8001/api/v1/ws/live-data"
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectBaseDelay   = 5 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWindowSize           = 100
	DefaultBufferSize           = 1000
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultPollInterval         = 5 * time.Minute
	DefaultPollConcurrency      = 4
	DefaultPollTimeout          = 10 * time.Second
	DefaultFeedListenAddr       = ":8001"
	DefaultFeedPath             = "/api/v1/ws/live-data"
	DefaultFeedTickInterval     = 30 * time.Second
	DefaultHealthPort           = 8080
	DefaultLogLevel             = "info"
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Live client defaults
	if c.Live.MaxReconnectAttempts == 0 {
		c.Live.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Live.ReconnectBaseDelay == 0 {
		c.Live.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Live.PingInterval == 0 {
		c.Live.PingInterval = DefaultPingInterval
	}
	if c.Live.WriteTimeout == 0 {
		c.Live.WriteTimeout = DefaultWriteTimeout
	}
	if c.Live.HandshakeTimeout == 0 {
		c.Live.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Realtime defaults
	if c.Realtime.WindowSize == 0 {
		c.Realtime.WindowSize = DefaultWindowSize
	}
	if c.Realtime.BufferSize == 0 {
		c.Realtime.BufferSize = DefaultBufferSize
	}

	// Database defaults (only meaningful when enabled)
	if c.Database.Enabled() {
		applyDBDefaults(&c.Database)
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Feed defaults
	if c.Feed.ListenAddr == "" {
		c.Feed.ListenAddr = DefaultFeedListenAddr
	}
	if c.Feed.Path == "" {
		c.Feed.Path = DefaultFeedPath
	}
	if c.Feed.TickInterval == 0 {
		c.Feed.TickInterval = DefaultFeedTickInterval
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// Default returns a config with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}
