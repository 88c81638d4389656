package handler

import (
	"github.com/Brownbull/gabeda-backend/internal/apiserver/middleware"
	"github.com/Brownbull/gabeda-backend/internal/auth/jwt"
	"github.com/Brownbull/gabeda-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterOptions configure the router built by NewRouter
type RouterOptions struct {
	ServiceName string
	MetricsPath string
	Metrics     *metrics.Metrics
	JWT         *jwt.Service
}

// NewRouter builds the gin engine with every api route
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(h.errs.RecoveryMiddleware())
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}
	r.GET("/healthz", h.HandleHealth)

	api := r.Group("/api", middleware.JWTAuthMiddleware(opts.JWT))
	api.POST("/tenants/:tenant_id/uploads", h.HandleUpload)
	api.GET("/uploads", h.HandleListUploads)
	api.GET("/uploads/:id", h.HandleGetUpload)
	api.POST("/uploads/:id/reprocess", h.HandleReprocess)
	api.GET("/results", h.HandleListResults)
	api.GET("/transactions", h.HandleListTransactions)

	return r
}
