package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/insightdash/internal/api"
	"github.com/rickgao/insightdash/internal/auth"
	"github.com/rickgao/insightdash/internal/config"
	"github.com/rickgao/insightdash/internal/live"
	"github.com/rickgao/insightdash/internal/version"
)

// newSession picks the bearer token: api.token wins over api.token_path.
// A missing token file yields an empty session.
func newSession(cfg *config.Config, logger *slog.Logger) *auth.Session {
	if cfg.API.Token != "" {
		return auth.NewSession(cfg.API.Token)
	}
	if cfg.API.TokenPath == "" {
		return auth.NewSession("")
	}

	session, err := auth.LoadToken(cfg.API.TokenPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to load token", "path", cfg.API.TokenPath, "error", err)
		}
		return auth.NewSession("")
	}
	return session
}

func newAPIClient(cfg *config.Config, session *auth.Session, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.API.RestURL,
		session,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)
}

func newLiveClient(cfg *config.Config, session *auth.Session, logger *slog.Logger) *live.Client {
	header := session.Header()
	header.Set("User-Agent", version.UserAgent())

	return live.New(live.Config{
		URL:                  cfg.API.WSURL,
		MaxReconnectAttempts: cfg.Live.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Live.ReconnectBaseDelay,
		PingInterval:         cfg.Live.PingInterval,
		WriteTimeout:         cfg.Live.WriteTimeout,
		HandshakeTimeout:     cfg.Live.HandshakeTimeout,
		Header:               header,
	}, logger)
}
