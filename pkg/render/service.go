package render

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/card-gateway/pkg/cache"
	"github.com/Sternrassler/card-gateway/pkg/generation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultInitTimeout bounds a single Init attempt. It sits below the default
// render timeout so a stuck Init surfaces as an initialization failure.
const DefaultInitTimeout = 20 * time.Second

// Service gates a Renderer behind its readiness precondition.
type Service struct {
	renderer    Renderer
	initTimeout time.Duration
	ready       atomic.Bool
	inits       singleflight.Group
	logger      zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithInitTimeout overrides DefaultInitTimeout. Non-positive values are ignored.
func WithInitTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.initTimeout = d
		}
	}
}

// NewService wraps renderer.
func NewService(renderer Renderer, logger zerolog.Logger, opts ...ServiceOption) (*Service, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	s := &Service{
		renderer:    renderer,
		initTimeout: DefaultInitTimeout,
		logger:      logger.With().Str("component", "render").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ready reports whether Init has succeeded.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// EnsureInit runs the renderer's Init unless it already succeeded. Concurrent
// callers share one attempt, bounded by the init timeout. A failure, a timeout
// included, wraps generation.ErrInitialization and is not remembered, so the
// next caller tries again.
func (s *Service) EnsureInit(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	ch := s.inits.DoChan("init", func() (any, error) {
		if s.ready.Load() {
			return nil, nil
		}

		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initTimeout)
		defer cancel()

		start := time.Now()
		if err := s.runInit(initCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("init timed out after %s: %w", s.initTimeout, err)
			}
			initsTotal.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Renderer init failed")
			return nil, fmt.Errorf("%w: %w", generation.ErrInitialization, err)
		}

		s.ready.Store(true)
		initsTotal.WithLabelValues("ok").Inc()
		s.logger.Info().Dur("duration", time.Since(start)).Msg("Renderer ready")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runInit calls the renderer's Init and gives up when ctx ends even if Init
// ignores it.
func (s *Service) runInit(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- s.renderer.Init(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render draws the card of the given kind for id, initializing the renderer first.
func (s *Service) Render(ctx context.Context, kind cache.Kind, id int64) ([]byte, error) {
	if err := s.EnsureInit(ctx); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	start := time.Now()
	switch kind {
	case cache.KindPortrait:
		data, err = s.renderer.Render(ctx, id)
	case cache.KindEquipment:
		data, err = s.renderer.RenderEquipment(ctx, id)
	default:
		return nil, fmt.Errorf("unknown card kind %q", kind)
	}
	renderDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("renderer returned an empty %s card for %d", kind, id)
	}
	return data, nil
}

// Producer returns the generation function for kind and id.
func (s *Service) Producer(kind cache.Kind, id int64) generation.Func {
	return func(ctx context.Context) ([]byte, error) {
		return s.Render(ctx, kind, id)
	}
}
