// Package generation coordinates cache lookups with on-demand card rendering.
// Concurrent requests for the same key share one generation; the result is
// written to the store once and fanned out to every waiter.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/card-gateway/pkg/cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/Sternrassler/card-gateway/pkg/generation"

// Func produces the bytes for one key. It is invoked at most once per
// in-flight ticket and must honour ctx cancellation where it can.
type Func func(ctx context.Context) ([]byte, error)

// Config holds the coordinator configuration.
type Config struct {
	// TTL is how long a generated artifact is served from the store.
	TTL time.Duration

	// RenderTimeout bounds a single generation. A generation that does not
	// finish in time fails with KindRender and retires its ticket.
	RenderTimeout time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		TTL:           time.Hour,
		RenderTimeout: 30 * time.Second,
	}
}

// Coordinator serves artifacts from a store and generates missing ones exactly
// once per key at a time.
type Coordinator struct {
	store   cache.Store
	tickets singleflight.Group
	config  Config
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New creates a coordinator over store.
func New(store cache.Store, cfg Config, logger zerolog.Logger) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive (got %s)", cfg.TTL)
	}
	if cfg.RenderTimeout <= 0 {
		return nil, fmt.Errorf("render timeout must be positive (got %s)", cfg.RenderTimeout)
	}

	return &Coordinator{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "generation").Logger(),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// TTL returns the configured artifact TTL.
func (c *Coordinator) TTL() time.Duration {
	return c.config.TTL
}

// Obtain returns the bytes cached under key, generating them on a miss.
//
// Callers arriving while a generation for key is in flight wait for it instead
// of starting another. A failed generation is delivered to every waiter as an
// *Error and is never cached. If ctx ends first, Obtain returns ctx.Err() while
// the shared generation carries on for the remaining waiters.
//
// The returned slice is shared between waiters and must not be modified.
func (c *Coordinator) Obtain(ctx context.Context, key cache.Key, generate Func) ([]byte, error) {
	if generate == nil {
		return nil, fmt.Errorf("generate function is required")
	}

	if data, ok := c.lookup(ctx, key); ok {
		return data, nil
	}

	// Set only in the caller whose ticket runs the generation; read after the
	// result arrives on the channel.
	var initiated bool
	ticket := c.tickets.DoChan(key.String(), func() (any, error) {
		initiated = true
		return c.generate(context.WithoutCancel(ctx), key, generate)
	})

	select {
	case res := <-ticket:
		if res.Shared && !initiated {
			generationsShared.WithLabelValues(key.Kind.String()).Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		c.logger.Debug().
			Str("key", key.String()).
			Err(ctx.Err()).
			Msg("Caller stopped waiting for generation")
		return nil, ctx.Err()
	}
}

// lookup reads key from the store. Store errors other than a miss are logged
// and treated as a miss so a broken entry gets regenerated.
func (c *Coordinator) lookup(ctx context.Context, key cache.Key) ([]byte, bool) {
	artifact, err := c.store.Get(ctx, key)
	if err == nil {
		c.logger.Debug().
			Str("key", key.String()).
			Dur("ttl", artifact.TTL()).
			Msg("Cache hit")
		return artifact.Data, true
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error, regenerating")
	} else {
		c.logger.Debug().Str("key", key.String()).Msg("Cache miss")
	}
	return nil, false
}

// generate runs once per ticket. ctx is detached from the initiating caller.
func (c *Coordinator) generate(ctx context.Context, key cache.Key, generate Func) ([]byte, error) {
	// A ticket that just retired may have filled the store between our miss and
	// this ticket's creation.
	if data, ok := c.lookup(ctx, key); ok {
		return data, nil
	}

	kind := key.Kind.String()
	ctx, span := c.tracer.Start(ctx, "generation.render",
		trace.WithAttributes(
			attribute.String("cache.key", key.String()),
			attribute.String("card.kind", kind),
			attribute.Int64("character.id", key.CharacterID),
		),
	)
	defer span.End()

	start := time.Now()
	data, err := c.runWithTimeout(ctx, generate)
	generationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		genErr := classify(key.String(), err)
		generationsTotal.WithLabelValues(kind, string(genErr.Kind)+"_error").Inc()
		span.RecordError(genErr)
		span.SetStatus(codes.Error, genErr.Reason())
		c.logger.Error().
			Err(genErr.Err).
			Str("key", key.String()).
			Str("error_class", string(genErr.Kind)).
			Dur("duration", time.Since(start)).
			Msg("Generation failed")
		return nil, genErr
	}

	if err := c.store.Set(ctx, key, data, c.config.TTL); err != nil {
		storeWriteErrors.Inc()
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache generated artifact")
	}

	generationsTotal.WithLabelValues(kind, "ok").Inc()
	span.SetAttributes(attribute.Int("artifact.size", len(data)))
	span.SetStatus(codes.Ok, "")
	c.logger.Info().
		Str("key", key.String()).
		Int("size", len(data)).
		Dur("duration", time.Since(start)).
		Dur("ttl", c.config.TTL).
		Msg("Generated artifact")

	return data, nil
}

// runWithTimeout calls generate and gives up after RenderTimeout even if the
// producer ignores its context.
func (c *Coordinator) runWithTimeout(ctx context.Context, generate Func) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RenderTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("generate panicked: %v", r)}
			}
		}()
		data, err := generate(ctx)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && len(res.data) == 0 {
			return nil, fmt.Errorf("generate returned no data")
		}
		return res.data, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("render timed out after %s: %w", c.config.RenderTimeout, ctx.Err())
	}
}
