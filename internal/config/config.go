package config

import "time"

// Config is the root configuration for the insightdash CLI.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Live     LiveConfig     `yaml:"live"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Database DBConfig       `yaml:"database"`
	Writer   WriterConfig   `yaml:"writer"`
	Poller   PollerConfig   `yaml:"poller"`
	Feed     FeedConfig     `yaml:"feed"`
	Health   HealthConfig   `yaml:"health"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds backend REST and push endpoint settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"`      // Bearer token (takes precedence over token_path)
	TokenPath  string        `yaml:"token_path"` // File holding a saved bearer token
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// LiveConfig holds push connection settings.
type LiveConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	Datasets             []int64       `yaml:"datasets"` // Datasets to subscribe to on every connect
}

// RealtimeConfig holds the in-memory realtime window settings.
type RealtimeConfig struct {
	WindowSize int `yaml:"window_size"`
	BufferSize int `yaml:"buffer_size"`
}

// DBConfig holds an optional PostgreSQL connection for persisting realtime points.
// Persistence is disabled when Host is empty.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// PollerConfig holds dataset refresh settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// FeedConfig holds push endpoint simulator settings.
type FeedConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	Path         string        `yaml:"path"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Datasets     []int64       `yaml:"datasets"`
}

// HealthConfig holds the health endpoint settings for the watch command.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
