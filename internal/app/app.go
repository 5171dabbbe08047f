package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mesa/internal/bridge"
	"mesa/internal/config"
	"mesa/internal/graphql"
	"mesa/internal/mesa"
	"mesa/internal/notify"
	"mesa/internal/querycache"
	"mesa/internal/realtime"
	"mesa/internal/store"
)

// MsgDisconnected is shown once reconnecting to the server has given up
const MsgDisconnected = "Lost connection to the server. Live updates are paused."

// App wires the client together
type App struct {
	cfg      *config.Config
	gql      *graphql.Client
	store    *store.BoltStore
	cache    *querycache.MemoryCache
	realtime *realtime.Client
	api      *mesa.Client
	bridge   *bridge.Bridge
	notifier notify.Notifier
	logger   zerolog.Logger

	stopOnce sync.Once
	stopErr  error
}

// New creates the application. Nothing connects until Start or the first read.
func New(cfg *config.Config, logger zerolog.Logger, notifier notify.Notifier) (*App, error) {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	gql := graphql.NewClient(graphql.ClientConfig{
		URL:               cfg.GraphQLURL(),
		Timeout:           cfg.GetRequestTimeoutDuration(),
		MaxAttempts:       cfg.RetryMaxAttempts,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Breaker: graphql.BreakerConfig{
			Enabled:          cfg.CircuitBreaker.Enabled,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  cfg.GetRecoveryTimeoutDuration(),
		},
	}, logger)

	var persister querycache.Persister
	var st *store.BoltStore
	if cfg.Cache.Persist {
		var err error
		st, err = store.Open(cfg.Cache.Directory, cfg.Server, logger)
		if err != nil {
			// another process may hold the database lock
			logger.Warn().Err(err).Msg("persistent query cache unavailable, using memory only")
			st = nil
		} else {
			persister = st
			logger.Debug().
				Str("directory", cfg.Cache.Directory).
				Msg("persistent query cache enabled")
		}
	}

	cache, err := querycache.NewMemoryCache(querycache.Config{
		Size:           cfg.Cache.Size,
		GCTime:         cfg.GetCacheGCTimeDuration(),
		RefetchTimeout: cfg.GetRequestTimeoutDuration(),
	}, mesa.NewFetcher(gql), persister, logger)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	rt := realtime.NewClientFromConfig(cfg, logger)
	rt.OnExhausted(func(err error) {
		logger.Error().Err(err).Msg("realtime connection gave up")
		notifier.Warning(MsgDisconnected)
	})

	api := mesa.NewClient(gql, cache, cfg.CoverURL, logger)
	br := bridge.New(rt, cache, notifier, cfg.GetRequestTimeoutDuration(), logger)

	return &App{
		cfg:      cfg,
		gql:      gql,
		store:    st,
		cache:    cache,
		realtime: rt,
		api:      api,
		bridge:   br,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Start subscribes to server events
func (a *App) Start() error {
	if err := a.bridge.Start(); err != nil {
		return fmt.Errorf("failed to start invalidation bridge: %w", err)
	}
	a.logger.Info().
		Str("server", a.cfg.Server).
		Str("ws", a.cfg.WebSocketURL()).
		Msg("listening for server events")
	return nil
}

// Visible resumes live updates with a fresh connection
func (a *App) Visible() {
	a.logger.Debug().Msg("app visible")
	a.realtime.Resume()
}

// Hidden suspends live updates
func (a *App) Hidden() {
	a.logger.Debug().Msg("app hidden")
	a.realtime.Suspend()
}

// API returns the typed server API
func (a *App) API() *mesa.Client {
	return a.api
}

// Realtime returns the realtime client
func (a *App) Realtime() *realtime.Client {
	return a.realtime
}

// Cache returns the query cache
func (a *App) Cache() *querycache.MemoryCache {
	return a.cache
}

// Stop tears everything down in reverse order
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.bridge.Stop()
			a.realtime.Close()
			a.cache.Close()
			a.gql.Close()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			a.stopErr = fmt.Errorf("shutdown interrupted: %w", ctx.Err())
			return
		}

		if a.store != nil {
			if err := a.store.Close(); err != nil {
				a.stopErr = errors.Join(a.stopErr, fmt.Errorf("failed to close cache store: %w", err))
			}
		}
		a.logger.Info().Msg("stopped")
	})
	return a.stopErr
}
