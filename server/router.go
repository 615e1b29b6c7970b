// Package server assembles the gin engine: middleware chain, /api routes and
// the Prometheus endpoint.
package server

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"componentlab/api/handlers"
	"componentlab/api/logger"
	"componentlab/api/middleware"
	"componentlab/api/tracking"
	"componentlab/api/utils"
)

// UserStore covers registration, login, the auth gate and the read-time join.
type UserStore interface {
	handlers.UserAccounts
	middleware.UserLookup
}

type Deps struct {
	Service        *tracking.Service
	Users          UserStore
	Tokens         *utils.JWTManager
	Postgres       handlers.Pinger
	ClickHouse     handlers.Pinger
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(d Deps) (*gin.Engine, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}
	metrics := middleware.NewMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(metrics.Collect())

	authHandlers := handlers.NewAuthHandlers(d.Users, d.Tokens, d.Log)
	componentHandlers := handlers.NewComponentHandlers(d.Service, metrics.InteractionsCounter, d.Log)
	healthHandler := handlers.NewHealthHandler(d.Postgres, d.ClickHouse, d.Log)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		auth := api.Group("/auth")
		auth.POST("/register", authHandlers.Register)
		auth.POST("/login", authHandlers.Login)

		components := api.Group("/components")
		components.POST("/track", componentHandlers.TrackEvent)
		components.GET("/stats", componentHandlers.GetStats)

		protected := components.Group("/export")
		protected.Use(middleware.AuthRequired(d.Tokens, d.Users, d.Log), gzip.Gzip(gzip.DefaultCompression))
		{
			protected.GET("", componentHandlers.Export)
			protected.GET("/view", componentHandlers.ViewExport)
		}
	}

	return r, nil
}
