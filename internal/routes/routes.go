// Package routes defines HTTP routes for the board gateway.
package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nailerHeum/AjouNICE/internal/config"
	"github.com/nailerHeum/AjouNICE/internal/handlers"
	"github.com/nailerHeum/AjouNICE/internal/metrics"
	"github.com/nailerHeum/AjouNICE/internal/middleware"
	"github.com/nailerHeum/AjouNICE/internal/service"
)

// Handlers groups everything the router serves.
type Handlers struct {
	GraphQL *handlers.GraphQLHandler
	Files   *handlers.FileHandler
	Health  *handlers.HealthHandler
}

// Setup configures all HTTP routes for the application.
func Setup(router *gin.Engine, h Handlers, cfg *config.Config, auth service.AuthService, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) {
	router.Use(m.Middleware())
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: "GET,POST,OPTIONS",
		AllowedHeaders: "Content-Type,Authorization,Apollo-Require-Preflight",
	}))

	// Health check
	router.GET("/health", h.Health.Check)
	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Uploaded files
	router.GET("/files/*key", h.Files.Serve)

	api := router.Group(cfg.GraphQLPath)
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	api.Use(middleware.Auth(auth, logger))
	{
		api.GET("", h.GraphQL.Serve)
		api.POST("", h.GraphQL.Serve)
		api.OPTIONS("", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	if cfg.EnablePlayground {
		router.GET("/playground", h.GraphQL.Playground)
	}
}
