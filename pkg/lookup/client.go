package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// Candidate is one character returned by a search.
type Candidate struct {
	ID     int64  `json:"ID"`
	Name   string `json:"Name"`
	Server string `json:"Server"`
}

// Searcher finds characters by world and name. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, world, name string) ([]Candidate, error)
}

// ClientConfig holds the search API client configuration.
type ClientConfig struct {
	// BaseURL is the search API root, e.g. https://xivapi.com.
	BaseURL string

	// PrivateKey is sent as the private_key query parameter when set.
	PrivateKey string

	// Timeout bounds one search request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultClientConfig returns the default search client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   "https://xivapi.com",
		Timeout:   10 * time.Second,
		UserAgent: "card-gateway/1.0",
	}
}

// XIVAPIClient searches characters through the XIVAPI character search endpoint.
type XIVAPIClient struct {
	http   *resty.Client
	config ClientConfig
	logger zerolog.Logger
}

var _ Searcher = (*XIVAPIClient)(nil)

type searchResponse struct {
	Results []Candidate `json:"Results"`
}

// NewXIVAPIClient creates a search client.
func NewXIVAPIClient(cfg ClientConfig, logger zerolog.Logger) (*XIVAPIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultClientConfig().UserAgent
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &XIVAPIClient{
		http:   rc,
		config: cfg,
		logger: logger.With().Str("component", "lookup-client").Logger(),
	}, nil
}

// Search issues one character search.
func (c *XIVAPIClient) Search(ctx context.Context, world, name string) ([]Candidate, error) {
	params := map[string]string{
		"name":   name,
		"server": world,
	}
	if c.config.PrivateKey != "" {
		params["private_key"] = c.config.PrivateKey
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/character/search")
	lookupRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, &TransportError{Message: "request failed", Err: err}
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("unexpected status %s", resp.Status()),
		}
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return nil, &TransportError{
			StatusCode: resp.StatusCode(),
			Message:    "decode search response",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("world", world).
		Str("name", name).
		Int("results", len(body.Results)).
		Dur("duration", time.Since(start)).
		Msg("Character search")

	return body.Results, nil
}

// Close releases the underlying HTTP client.
func (c *XIVAPIClient) Close() error {
	return c.http.Close()
}
