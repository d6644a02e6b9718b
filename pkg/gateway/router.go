package gateway

import (
	"github.com/Sternrassler/card-gateway/pkg/cache"
	"github.com/Sternrassler/card-gateway/pkg/logging"
	"github.com/Sternrassler/card-gateway/pkg/metrics"
	"github.com/Sternrassler/card-gateway/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger           zerolog.Logger
	TelemetryEnabled bool
}

// NewRouter mounts the handler on a gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	if opts.TelemetryEnabled {
		r.Use(telemetry.GinMiddleware())
	}
	r.Use(logging.GinMiddleware(opts.Logger))

	for _, kind := range cache.Kinds {
		seg := kind.PathSegment()

		r.GET("/prepare/"+seg+"id/:id", h.PrepareByID(kind))
		r.GET("/prepare/"+seg+"name/:world/:name", h.PrepareByName(kind))
		r.GET("/characters/"+seg+"id/:file", h.ImageByID(kind))
		r.GET("/characters/"+seg+"name/:world/:file", h.ImageByName(kind))
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
