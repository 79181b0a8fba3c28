package httpapi

import (
	"github.com/3merillon/rmt-compose-poc-sub004/internal/config"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/metrics"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/middleware"
	"github.com/gin-gonic/gin"
)

// NewRouter wires Sentry, recovery, request tracking, and CORS ahead of
// the auth-gated /api/v1 group, matching the teacher's middleware
// ordering (internal/api/router.go): panic safety and observability wrap
// every request, auth only gates the composition routes.
func NewRouter(cfg *config.Config, store CompositionStore, cloudwatch *metrics.Client) *gin.Engine {
	r := gin.New()

	r.Use(middleware.SentryMiddleware())
	r.Use(middleware.RecoverWithSentry())
	r.Use(middleware.RequestTracking())
	r.Use(middleware.CORS())

	handler := NewCompositionHandler(store, cloudwatch)

	r.GET("/health", HealthCheck)
	r.GET("/api/metrics", MetricsHandler(cfg))

	api := r.Group("/api/v1")
	api.Use(authMiddleware(cfg))
	{
		compositions := api.Group("/compositions")
		compositions.POST("", handler.CreateComposition)
		compositions.GET("/:id", handler.GetComposition)
		compositions.POST("/:id/evaluate", handler.EvaluateComposition)
		compositions.POST("/:id/batch", handler.BatchSetExpressions)

		notes := compositions.Group("/:id/notes")
		notes.POST("", handler.AddNote)
		notes.GET("/:noteId", handler.GetNote)
		notes.PATCH("/:noteId", handler.SetNoteExpression)
		notes.DELETE("/:noteId", handler.DeleteNote)
		notes.POST("/:noteId/liberate", handler.LiberateNote)
		notes.GET("/:noteId/evaluate-to-base", handler.EvaluateToBase)
		notes.GET("/:noteId/dependents", handler.NoteDependents)
	}

	return r
}

// authMiddleware dispatches by cfg.AuthMode, mirroring the teacher's
// three-mode selection in internal/api/router.go (jwt/gateway/none).
func authMiddleware(cfg *config.Config) gin.HandlerFunc {
	switch cfg.AuthMode {
	case "gateway":
		return middleware.GatewayAuth()
	case "none":
		return middleware.NoAuth()
	default:
		return middleware.JWTAuth(cfg)
	}
}
