// Package gateway exposes the card cache over HTTP.
//
// Each card kind gets the same four routes, prefixed by the kind's path segment
// ("" for portraits, "equipments/" for equipment cards):
//
//	GET /prepare/{seg}id/:id                 render into the cache, answer with the image URL
//	GET /prepare/{seg}name/:world/:name      resolve, then redirect to the id form
//	GET /characters/{seg}id/:id.png          serve the image
//	GET /characters/{seg}name/:world/:name.png  resolve, then redirect to the id image
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/card-gateway/pkg/cache"
	"github.com/Sternrassler/card-gateway/pkg/generation"
	"github.com/Sternrassler/card-gateway/pkg/lookup"
	"github.com/Sternrassler/card-gateway/pkg/render"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	pngSuffix        = ".png"
	notFoundText     = "Character not found."
	invalidIDReason  = "invalid character id"
	lookupFailReason = "character lookup failed"
)

// Coordinator serves cached artifacts, generating them on demand.
type Coordinator interface {
	Obtain(ctx context.Context, key cache.Key, generate generation.Func) ([]byte, error)
	TTL() time.Duration
}

// Resolver maps a world and character name to an id.
type Resolver interface {
	ResolveID(ctx context.Context, world, name string) (int64, error)
}

// Renderer builds generation functions for a card.
type Renderer interface {
	Producer(kind cache.Kind, id int64) generation.Func
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

type response struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Handler serves the gateway routes.
type Handler struct {
	coordinator Coordinator
	resolver    Resolver
	renderer    Renderer
	checks      []Check
	logger      zerolog.Logger
}

// NewHandler creates a handler. Checks run in order on /readyz.
func NewHandler(coordinator Coordinator, resolver Resolver, renderer Renderer, logger zerolog.Logger, checks ...Check) (*Handler, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	return &Handler{
		coordinator: coordinator,
		resolver:    resolver,
		renderer:    renderer,
		checks:      checks,
		logger:      logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// PrepareByID renders the card into the cache and answers with its URL.
func (h *Handler) PrepareByID(kind cache.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.parseID(c, c.Param("id"))
		if !ok {
			return
		}

		if _, err := h.obtain(c, kind, id); err != nil {
			h.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, response{Status: "ok", URL: ImageURL(kind, id)})
	}
}

// PrepareByName resolves the character and redirects to the id form.
func (h *Handler) PrepareByName(kind cache.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.resolver.ResolveID(c.Request.Context(), c.Param("world"), c.Param("name"))
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Redirect(http.StatusFound, PrepareURL(kind, id))
	}
}

// ImageByID serves the card image. Requests without the .png suffix are
// redirected to it.
func (h *Handler) ImageByID(kind cache.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		file := c.Param("file")
		raw, isPNG := strings.CutSuffix(file, pngSuffix)

		id, ok := h.parseID(c, raw)
		if !ok {
			return
		}
		if !isPNG {
			c.Redirect(http.StatusFound, ImageURL(kind, id))
			return
		}

		data, err := h.obtain(c, kind, id)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(h.coordinator.TTL().Seconds())))
		c.Header("Content-Length", strconv.Itoa(len(data)))
		c.Data(http.StatusOK, render.ContentType, data)
	}
}

// ImageByName resolves the character and redirects to its image. Requests
// without the .png suffix are redirected to it first.
func (h *Handler) ImageByName(kind cache.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		world := c.Param("world")
		file := c.Param("file")

		name, isPNG := strings.CutSuffix(file, pngSuffix)
		if !isPNG {
			c.Redirect(http.StatusFound, nameImageURL(kind, world, name))
			return
		}

		id, err := h.resolver.ResolveID(c.Request.Context(), world, name)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Redirect(http.StatusFound, ImageURL(kind, id))
	}
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Readyz runs every readiness check and fails on the first error.
func (h *Handler) Readyz(c *gin.Context) {
	for _, check := range h.checks {
		if err := check.Run(c.Request.Context()); err != nil {
			h.logger.Warn().Err(err).Str("check", check.Name).Msg("Readiness check failed")
			c.JSON(http.StatusServiceUnavailable, response{
				Status: "error",
				Reason: fmt.Sprintf("%s: %v", check.Name, err),
			})
			return
		}
	}
	c.JSON(http.StatusOK, response{Status: "ok"})
}

func (h *Handler) obtain(c *gin.Context, kind cache.Kind, id int64) ([]byte, error) {
	key := cache.NewKey(kind, id)
	return h.coordinator.Obtain(c.Request.Context(), key, h.renderer.Producer(kind, id))
}

// parseID accepts positive decimal ids and answers 400 otherwise.
func (h *Handler) parseID(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response{Status: "error", Reason: invalidIDReason})
		return 0, false
	}
	return id, true
}

// respondError maps an error to its HTTP answer.
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var genErr *generation.Error
	switch {
	case errors.As(err, &genErr):
		c.JSON(http.StatusInternalServerError, response{Status: "error", Reason: genErr.Reason()})
	case errors.Is(err, lookup.ErrNotFound):
		c.String(http.StatusNotFound, notFoundText)
	case errors.Is(err, lookup.ErrTransport):
		c.JSON(http.StatusBadGateway, response{Status: "error", Reason: lookupFailReason})
	case errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil:
		// Client went away; nobody reads the answer.
		c.AbortWithStatus(499)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, response{Status: "error", Reason: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, response{Status: "error", Reason: err.Error()})
	}
}

// ImageURL returns the image path for a card.
func ImageURL(kind cache.Kind, id int64) string {
	return fmt.Sprintf("/characters/%sid/%d%s", kind.PathSegment(), id, pngSuffix)
}

// PrepareURL returns the prepare path for a card.
func PrepareURL(kind cache.Kind, id int64) string {
	return fmt.Sprintf("/prepare/%sid/%d", kind.PathSegment(), id)
}

func nameImageURL(kind cache.Kind, world, name string) string {
	return fmt.Sprintf("/characters/%sname/%s/%s%s",
		kind.PathSegment(), url.PathEscape(world), url.PathEscape(name), pngSuffix)
}
