package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"signalhub/internal/domain"
	custommiddleware "signalhub/internal/middleware"
	"signalhub/pkg/logger"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	JWT              *custommiddleware.JWTManager
	Logger           *logger.Logger
	RequestTimeout   time.Duration
	AuthHandler      *AuthHandler
	SignalHandler    *SignalHandler
	FuturesHandler   *FuturesHandler
	BroadcastHandler *BroadcastHandler
	TemplateHandler  *TemplateHandler
	MarketHandler    *MarketHandler
	AdminHandler     *AdminHandler
	UserHandler      *UserHandler
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	e.HTTPErrorHandler = errorHandler(config.Logger)

	e.Use(middleware.RequestID())
	e.Use(custommiddleware.RequestLogger(config.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("1M"))
	if config.RequestTimeout > 0 {
		// fan-out and leaderboard sync may run longer than a regular request
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: config.RequestTimeout,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/send") ||
					strings.HasSuffix(path, "/confirm") ||
					strings.HasSuffix(path, "/sync")
			},
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":    "healthy",
			"service":   "signalhub-api",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := e.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", config.AuthHandler.Login)
		auth.POST("/logout", config.AuthHandler.Logout)
		auth.GET("/me", config.AuthHandler.Me, config.JWT.Authenticate)
	}

	// every route below requires a session; mutations also need a write role
	protected := api.Group("", config.JWT.Authenticate)
	write := custommiddleware.RequireWrite
	admin := custommiddleware.AdminMiddleware

	for _, kind := range []domain.SignalKind{domain.SignalKindSpot, domain.SignalKindFutures} {
		h := config.SignalHandler
		g := protected.Group("/signals/" + string(kind))
		g.GET("", h.List(kind))
		g.GET("/:id", h.Get(kind))
		g.PATCH("/:id/status", h.ChangeStatus(kind), write)
		g.POST("/:id/send", h.Send(kind), write)
		if kind == domain.SignalKindSpot {
			g.POST("", h.CreateSpot, write)
			g.PUT("/:id", h.UpdateSpot, write)
		} else {
			g.POST("", h.CreateFutures, write)
			g.PUT("/:id", h.UpdateFutures, write)
		}
	}

	futures := protected.Group("/futures")
	{
		h := config.FuturesHandler
		futures.GET("/settings", h.GetSettings)
		futures.PUT("/settings", h.UpdateSettings, write)
		futures.GET("/traders", h.ListTraders)
		futures.GET("/traders/followed", h.ListFollowed)
		futures.POST("/traders/:id/follow", h.ToggleFollow, write)
		futures.DELETE("/traders/:id/follow-lock", h.ReleaseLock, write)
		futures.GET("/traders/:id/signals", h.TraderSignals)
		futures.GET("/leaderboard", h.Leaderboard)
		futures.POST("/leaderboard/sync", h.Sync, write)
		futures.GET("/stats", h.Stats)
	}

	broadcasts := protected.Group("/broadcasts")
	{
		h := config.BroadcastHandler
		broadcasts.GET("", h.List)
		broadcasts.POST("", h.Create, write)
		broadcasts.GET("/audiences", h.Audiences)
		broadcasts.GET("/stats", h.Stats)
		broadcasts.GET("/:id", h.Get)
		broadcasts.PUT("/:id", h.Update, write)
		broadcasts.DELETE("/:id", h.Delete, write)
		broadcasts.POST("/:id/prepare", h.Prepare, write)
		broadcasts.POST("/:id/confirm", h.Confirm, write)
	}

	templates := protected.Group("/templates")
	{
		h := config.TemplateHandler
		templates.GET("", h.List)
		templates.POST("", h.Create, write)
		templates.GET("/types", h.Types)
		templates.GET("/variables/:type", h.Variables)
		templates.GET("/identifier/:identifier", h.GetByIdentifier)
		templates.POST("/preview", h.Preview)
		templates.GET("/:id", h.Get)
		templates.PUT("/:id", h.Update, write)
		templates.DELETE("/:id", h.Delete, write)
	}

	market := protected.Group("/market")
	{
		market.GET("/price/:symbol", config.MarketHandler.Price)
		market.GET("/sentiment", config.MarketHandler.Sentiment)
	}

	{
		h := config.AdminHandler
		protected.GET("/subscribers", h.ListSubscribers)
		protected.GET("/subscribers/stats", h.SubscriberStats)
		protected.PATCH("/subscribers/:id", h.UpdateSubscriber, write)

		protected.GET("/integrations", h.ListIntegrations, admin)
		protected.PUT("/integrations/:provider", h.UpsertIntegration, admin)
		protected.DELETE("/integrations/:provider", h.DeleteIntegration, admin)

		protected.GET("/audit-logs", h.AuditLogs)
		protected.GET("/dashboard/stats", h.DashboardStats)
		protected.GET("/system/health", h.GetSystemHealth)
	}

	users := protected.Group("/users", admin)
	{
		h := config.UserHandler
		users.GET("", h.List)
		users.POST("", h.Create)
		users.GET("/:id", h.Get)
		users.PUT("/:id", h.Update)
	}
}

// errorHandler renders errors that escape handlers, mostly from middleware,
// in the response envelope.
func errorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			message = fmt.Sprint(he.Message)
		} else {
			log.Error("Unhandled error", logger.String("path", c.Path()), logger.Error(err))
		}

		var errs []ValidationError
		if status == http.StatusForbidden || status == http.StatusUnauthorized {
			errs = []ValidationError{{Code: strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")), Message: message}}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = ErrorResponse(c, status, message, errs)
		}
		if err != nil {
			log.Error("Failed to write error response", logger.Error(err))
		}
	}
}
