package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// HTTPConfig holds the render backend client configuration.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPRenderer renders cards through an out-of-process render backend.
type HTTPRenderer struct {
	http   *resty.Client
	logger zerolog.Logger
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer creates a renderer talking to cfg.BaseURL.
func NewHTTPRenderer(cfg HTTPConfig, logger zerolog.Logger) (*HTTPRenderer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("renderer base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "card-gateway/1.0")

	return &HTTPRenderer{
		http:   rc,
		logger: logger.With().Str("component", "render-http").Logger(),
	}, nil
}

// Init checks that the backend is up.
func (r *HTTPRenderer) Init(ctx context.Context) error {
	resp, err := r.http.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		rendererRequestsTotal.WithLabelValues("healthz", "error").Inc()
		return fmt.Errorf("render backend unreachable: %w", err)
	}
	rendererRequestsTotal.WithLabelValues("healthz", strconv.Itoa(resp.StatusCode())).Inc()

	if resp.IsError() {
		return fmt.Errorf("render backend not healthy: %s", resp.Status())
	}
	return nil
}

// Render draws the portrait card for id.
func (r *HTTPRenderer) Render(ctx context.Context, id int64) ([]byte, error) {
	return r.fetch(ctx, "portrait", fmt.Sprintf("/cards/%d.png", id))
}

// RenderEquipment draws the equipment card for id.
func (r *HTTPRenderer) RenderEquipment(ctx context.Context, id int64) ([]byte, error) {
	return r.fetch(ctx, "equipment", fmt.Sprintf("/cards/equipment/%d.png", id))
}

func (r *HTTPRenderer) fetch(ctx context.Context, endpoint, path string) ([]byte, error) {
	start := time.Now()
	resp, err := r.http.R().
		SetContext(ctx).
		SetHeader("Accept", ContentType).
		Get(path)
	if err != nil {
		rendererRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("render request %s: %w", path, err)
	}
	rendererRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode())).Inc()

	if resp.IsError() {
		return nil, fmt.Errorf("render backend returned %s for %s", resp.Status(), path)
	}

	data := resp.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("render backend returned an empty body for %s", path)
	}

	r.logger.Debug().
		Str("path", path).
		Int("size", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Card rendered")
	return data, nil
}

// Close releases the underlying HTTP client.
func (r *HTTPRenderer) Close() error {
	return r.http.Close()
}
