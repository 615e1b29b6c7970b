package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"componentlab/api/logger"
)

// Pinger is satisfied by both database clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	postgres   Pinger
	clickhouse Pinger
	started    time.Time
	log        *logger.Logger
}

func NewHealthHandler(postgres, clickhouse Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{postgres: postgres, clickhouse: clickhouse, started: time.Now(), log: log}
}

type serviceStatus struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

func (h *HealthHandler) check(ctx context.Context, name string, p Pinger) serviceStatus {
	if p == nil {
		return serviceStatus{Status: "disconnected"}
	}
	if err := p.Ping(ctx); err != nil {
		h.log.Warn("health check failed", zap.String("service", name), zap.Error(err))
		return serviceStatus{Status: "disconnected"}
	}
	return serviceStatus{Status: "connected", Connected: true}
}

// Health always reports success; a failed dependency shows up as status
// "degraded" with a 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	pg := h.check(ctx, "postgres", h.postgres)
	ch := h.check(ctx, "clickhouse", h.clickhouse)

	status, code := "healthy", http.StatusOK
	if !pg.Connected || !ch.Connected {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(code, gin.H{
		"success":   true,
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Seconds(),
		"services": gin.H{
			"database":   pg,
			"clickhouse": ch,
		},
		"system": gin.H{
			"goVersion":  runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc":      mem.Alloc,
				"totalAlloc": mem.TotalAlloc,
				"sys":        mem.Sys,
			},
		},
	})
}
