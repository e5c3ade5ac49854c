package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/handler"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Me         *handler.MeHandler
	Class      *handler.ClassHandler
	Agenda     *handler.AgendaHandler
	Completion *handler.CompletionHandler
	Fee        *handler.FeeHandler
	Dashboard  *handler.DashboardHandler
	WS         *handler.WSHandler
	Health     *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter's sweeper. m may
// be nil, which disables request metrics and /metrics.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	m *metrics.Metrics,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	if m != nil {
		router.Use(middleware.Metrics(m))
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, ctx.Done())

	// ─── 1. API Group (JWT + per-user rate limit) ──────────────────────
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireJWT(authService),
		limiter.Middleware(),
		middleware.NoStore(),
	)
	{
		api.GET("/me", handlers.Me.GetProfile)
		api.PUT("/me", handlers.Me.UpdateProfile)

		// Class registry
		api.GET("/classes", handlers.Class.ListClasses)
		api.POST("/classes", handlers.Class.CreateClass)
		api.GET("/classes/:id", handlers.Class.GetClass)
		api.PUT("/classes/:id", handlers.Class.UpdateClass)
		api.DELETE("/classes/:id", handlers.Class.DeleteClass)
		api.PATCH("/classes/:id/active", handlers.Class.SetActive)

		// Schedule projection
		api.GET("/agenda/today", handlers.Agenda.Today)
		api.GET("/agenda/upcoming", handlers.Agenda.Upcoming)

		// Completion ledger
		api.POST("/classes/:id/completions", handlers.Completion.MarkCompleted)
		api.GET("/classes/:id/completions", handlers.Completion.ClassHistory)
		api.GET("/completions", handlers.Completion.CompletedOn)

		// Fee reconciliation
		api.GET("/classes/:id/fees/:month", handlers.Fee.GetPeriod)
		api.PUT("/classes/:id/fees/:month", handlers.Fee.SavePlan)
		api.POST("/classes/:id/fees/:month/payments", handlers.Fee.RecordPayment)
		api.GET("/classes/:id/fees/:month/payments", handlers.Fee.ListPayments)
		api.GET("/fees/:month/summary", handlers.Fee.MonthSummary)
		api.GET("/fees/:month/summary/stream", handlers.Fee.StreamMonthSummary)
		api.GET("/fees/:month/report.xlsx", handlers.Fee.MonthReport)

		// Monthly aggregates
		api.GET("/stats/series", handlers.Dashboard.Series)
		api.GET("/dashboard", handlers.Dashboard.GetDashboard)
		api.GET("/dashboard/stream", handlers.Dashboard.StreamDashboard)
	}

	// ─── 2. WebSocket Group (token query auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireJWT(authService))
	{
		ws.GET("/today", handlers.WS.TodayStream)
	}

	return router
}
