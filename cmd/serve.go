package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/oauth"
	"github.com/desertthunder/linkd/internal/repositories"
	"github.com/desertthunder/linkd/internal/server"
	"github.com/desertthunder/linkd/internal/services"
	"github.com/desertthunder/linkd/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const (
	stateBackendSQL   = "sql"
	stateBackendRedis = "redis"
)

// deps is everything the serve command wires together.
type deps struct {
	db      *sql.DB
	redis   *redis.Client
	tokens  *repositories.TokenRepository
	states  models.StateCodeStore
	spotify *services.SpotifyService
	gphotos *services.GPhotosService
}

func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// build opens the stores and constructs both provider adapters from config.
func (r *Runner) build(ctx context.Context, config *shared.Config) (*deps, error) {
	db, err := r.openDatabase(config)
	if err != nil {
		return nil, err
	}

	d := &deps{db: db, tokens: repositories.NewTokenRepository(db, r.driver(config))}

	switch config.State.Backend {
	case "", stateBackendSQL:
		d.states = repositories.NewStateCodeRepository(db, r.driver(config))
	case stateBackendRedis:
		client, err := repositories.NewRedisClient(ctx, config.State.Redis)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.redis = client
		d.states = repositories.NewRedisStateCodeStore(client, config.State.Redis.Prefix)
	default:
		d.Close()
		return nil, fmt.Errorf("%w: unknown state backend %q", shared.ErrInvalidConfig, config.State.Backend)
	}

	transport := oauth.NewTransport(oauth.TransportOptions{
		Timeout:   config.HTTP.Timeout(),
		RateLimit: config.HTTP.RateLimit,
		Burst:     config.HTTP.Burst,
		Logger:    shared.WithLogger(r.logger, "component", "transport"),
	})

	d.spotify = services.NewSpotifyService(services.Options{
		Credentials: config.Credentials.Spotify,
		Store:       d.tokens,
		Transport:   transport,
		Logger:      r.logger,
	})
	d.gphotos = services.NewGPhotosService(services.Options{
		Credentials: config.Credentials.GPhotos,
		Store:       d.tokens,
		Transport:   transport,
		Logger:      r.logger,
	}, config.Cache.TTL())

	for _, adapter := range []services.Adapter{d.spotify, d.gphotos} {
		if !adapter.Provider().CanOperate() {
			r.logger.Warn("provider credentials missing, login and data endpoints will fail", "provider", adapter.ID())
		}
	}

	return d, nil
}

// Serve runs the HTTP server until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := r.build(ctx, config)
	if err != nil {
		return err
	}
	defer d.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}

	srv, err := server.New(server.Options{
		Addr:      addr,
		PublicURL: config.Server.PublicURL,
		AdminKey:  config.Server.AdminKey,
		StateTTL:  config.State.TTL(),
		States:    d.states,
		Spotify:   d.spotify,
		GPhotos:   d.gphotos,
		Registry:  registry,
		Logger:    r.logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
