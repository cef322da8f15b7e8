package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/tertab-backend/internal/config"
	"github.com/ignatzorin/tertab-backend/internal/http/middleware"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/handler"
)

// Handlers - обработчики, которые регистрирует роутер.
type Handlers struct {
	Institutions *handler.InstitutionHandler
	References   *handler.ReferenceHandler
	Disputes     *handler.DisputeHandler
	Health       *handler.HealthHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokens middleware.AccessTokenParser,
	rateStore limiter.Store,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(rateStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Ссылка из письма подтверждения открывается без авторизации.
	api.GET("/institutions/:id/verify", middleware.UUIDValidator("id"), h.Institutions.Verify)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/institutions", h.Institutions.List)
		protected.POST("/institutions", h.Institutions.Submit)
		protected.POST("/institutions/:id/verification", middleware.UUIDValidator("id"), h.Institutions.ResendVerification)
		protected.DELETE("/institutions/:id", middleware.UUIDValidator("id"), h.Institutions.Delete)

		protected.GET("/references", h.References.List)
		protected.POST("/references", h.References.Create)
		protected.GET("/references/:id", middleware.UUIDValidator("id"), h.References.Get)
		protected.POST("/references/:id/start", middleware.UUIDValidator("id"), h.References.Start)
		protected.POST("/references/:id/complete", middleware.UUIDValidator("id"), h.References.Complete)
		protected.POST("/references/:id/reject", middleware.UUIDValidator("id"), h.References.Reject)
		protected.POST("/references/:id/documents", middleware.UUIDValidator("id"), h.References.AttachDocuments)
		protected.POST("/references/:id/disputes", middleware.UUIDValidator("id"), h.Disputes.Open)
		protected.GET("/references/:id/disputes", middleware.UUIDValidator("id"), h.Disputes.ListForReference)

		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Disputes.Get)
		protected.POST("/disputes/:id/messages", middleware.UUIDValidator("id"), h.Disputes.PostMessage)
		protected.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Disputes.Resolve)
		protected.POST("/disputes/:id/close", middleware.UUIDValidator("id"), h.Disputes.Close)
	}

	internal := r.Group("/internal")
	internal.Use(middleware.InternalKeyMiddleware(cfg.InternalAPIKey))
	{
		internal.POST("/references/:id/paid", middleware.UUIDValidator("id"), h.References.MarkPaid)
	}

	return r
}
