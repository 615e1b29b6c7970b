// api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"componentlab/api/config"
	"componentlab/api/database"
	"componentlab/api/logger"
	"componentlab/api/server"
	"componentlab/api/store"
	"componentlab/api/tracking"
	"componentlab/api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// --- PostgreSQL (users) ---
	dbClient, err := database.NewPostgresDB(ctx, cfg.Postgres, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize PostgreSQL database", zap.Error(err))
	}
	defer dbClient.Close()
	if err := dbClient.Migrate(ctx); err != nil {
		appLog.Fatal("Failed to migrate PostgreSQL schema", zap.Error(err))
	}

	// --- ClickHouse (interaction events) ---
	chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize ClickHouse database", zap.Error(err))
	}
	defer chClient.Close()
	if err := chClient.Migrate(ctx); err != nil {
		appLog.Fatal("Failed to migrate ClickHouse schema", zap.Error(err))
	}

	userStore := store.NewUserStore(dbClient.DB)
	eventStore := store.NewEventStore(chClient)

	router, err := server.NewRouter(server.Deps{
		Service:        tracking.NewService(eventStore, userStore),
		Users:          userStore,
		Tokens:         utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer),
		Postgres:       dbClient,
		ClickHouse:     chClient,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Log:            appLog,
	})
	if err != nil {
		appLog.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		appLog.Info("API server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("API server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}

	appLog.Info("Server exiting")
}
