// Command card-gateway serves rendered character cards over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/card-gateway/pkg/cache"
	"github.com/Sternrassler/card-gateway/pkg/config"
	"github.com/Sternrassler/card-gateway/pkg/gateway"
	"github.com/Sternrassler/card-gateway/pkg/generation"
	"github.com/Sternrassler/card-gateway/pkg/logging"
	"github.com/Sternrassler/card-gateway/pkg/lookup"
	"github.com/Sternrassler/card-gateway/pkg/render"
	"github.com/Sternrassler/card-gateway/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

// version is set at build time.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(logging.Config{
		Level:   level,
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: cfg.Telemetry.ServiceName,
		Version: version,
	})

	if level != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Gateway failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down telemetry")
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("cache_backend", cfg.Cache.Backend).
			Dur("cache_ttl", cfg.Cache.TTL).
			Msg("Starting card gateway")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}

// app holds the wired components and everything that needs closing.
type app struct {
	router  http.Handler
	closers []func() error
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	store, storeCheck, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	coord, err := generation.New(store, generation.Config{
		TTL:           cfg.Cache.TTL,
		RenderTimeout: cfg.Cache.RenderTimeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	httpRenderer, err := render.NewHTTPRenderer(render.HTTPConfig{
		BaseURL: cfg.Renderer.BaseURL,
		Timeout: cfg.Renderer.Timeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	a.closers = append(a.closers, httpRenderer.Close)

	renderService, err := render.NewService(httpRenderer, logger, render.WithInitTimeout(cfg.Renderer.InitTimeout))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create render service: %w", err)
	}

	searchClient, err := lookup.NewXIVAPIClient(lookup.ClientConfig{
		BaseURL:    cfg.Lookup.BaseURL,
		PrivateKey: cfg.Lookup.PrivateKey,
		Timeout:    cfg.Lookup.Timeout,
		UserAgent:  "card-gateway/" + version,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create search client: %w", err)
	}
	a.closers = append(a.closers, searchClient.Close)

	resolver, err := lookup.NewResolver(searchClient, cfg.Lookup.Retries, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	checks := []gateway.Check{{Name: "renderer", Run: renderService.EnsureInit}}
	if storeCheck != nil {
		checks = append(checks, gateway.Check{Name: "store", Run: storeCheck})
	}

	handler, err := gateway.NewHandler(coord, resolver, renderService, logger, checks...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create handler: %w", err)
	}

	a.router = gateway.NewRouter(handler, gateway.RouterOptions{
		Logger:           logging.NewLogger("http"),
		TelemetryEnabled: cfg.Telemetry.Enabled,
	})
	return a, nil
}

// Close releases every component, last created first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}

// newStore opens the backend selected by CACHE_BACKEND. The returned check
// probes backend reachability and is nil for the memory store.
func newStore(cfg *config.Config) (cache.Store, func(context.Context) error, error) {
	switch cfg.Cache.Backend {
	case config.BackendDisk:
		store, err := cache.OpenDiskStore(cfg.Cache.Dir, cfg.Cache.MaxSize)
		if err != nil {
			return nil, nil, fmt.Errorf("open disk store: %w", err)
		}
		return store, store.Ping, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		store := cache.NewRedisStore(client, cfg.Cache.MaxSize)
		return store, store.Ping, nil

	case config.BackendMemory:
		return cache.NewMemoryStore(cfg.Cache.MaxSize), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
