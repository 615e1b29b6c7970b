// api/handlers/components_handlers.go
package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"componentlab/api/export"
	"componentlab/api/logger"
	"componentlab/api/middleware"
	"componentlab/api/models"
	"componentlab/api/tracking"
	"componentlab/api/utils"
)

const queryTimeout = 10 * time.Second

type ComponentHandlers struct {
	Service *tracking.Service
	tracked *prometheus.CounterVec
	log     *logger.Logger
}

// NewComponentHandlers wires the tracking endpoints. tracked may be nil.
func NewComponentHandlers(service *tracking.Service, tracked *prometheus.CounterVec, log *logger.Logger) *ComponentHandlers {
	return &ComponentHandlers{Service: service, tracked: tracked, log: log}
}

func (h *ComponentHandlers) TrackEvent(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	event, err := h.Service.Track(ctx, req)
	if err != nil {
		var verr *tracking.ValidationError
		if errors.As(err, &verr) {
			respondValidation(c, verr.Fields)
			return
		}
		h.log.Error("TrackEvent: failed to record interaction", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error al registrar interacción")
		return
	}

	if h.tracked != nil {
		h.tracked.WithLabelValues(string(event.UserType)).Inc()
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Interacción registrada",
		"data":    event,
	})
}

func (h *ComponentHandlers) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stats, err := h.Service.Stats(ctx)
	if err != nil {
		h.log.Error("GetStats: aggregation failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error al obtener estadísticas")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// ViewExport serves one page of the review table. Missing or malformed page
// and limit fall back to 1 and 10 before clamping.
func (h *ComponentHandlers) ViewExport(c *gin.Context) {
	page := utils.QueryInt(c.Query("page"), 1)
	limit := utils.QueryInt(c.Query("limit"), tracking.DefaultPageSize)

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.Service.Page(ctx, page, limit)
	if err != nil {
		h.log.Error("ViewExport: failed to read page", zap.Error(err), zap.Int("page", page), zap.Int("limit", limit))
		respondError(c, http.StatusInternalServerError, "Error al obtener datos de exportación")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       result.Data,
		"pagination": result.Pagination,
	})
}

// Export returns every event with its user. ?format=csv answers with the CSV
// document instead of the JSON envelope.
func (h *ComponentHandlers) Export(c *gin.Context) {
	records, err := h.Service.Export(c.Request.Context())
	if err != nil {
		h.log.Error("Export: failed to read events", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error al obtener datos de exportación")
		return
	}
	if user, ok := middleware.CurrentUser(c); ok {
		h.log.Info("Export requested", zap.String("user_id", user.ID), zap.Int("records", len(records)))
	}

	if c.Query("format") != "csv" {
		c.JSON(http.StatusOK, export.Envelope{Success: true, Data: records})
		return
	}

	var buf bytes.Buffer
	if err := export.CSV(&buf, records); err != nil {
		if errors.Is(err, export.ErrNoData) {
			respondError(c, http.StatusNotFound, "No hay datos para exportar")
			return
		}
		h.log.Error("Export: failed to render CSV", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error al obtener datos de exportación")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(time.Now(), "csv")+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
