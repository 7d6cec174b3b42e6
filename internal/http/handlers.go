package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger es lo minimo que necesita /healthz de la base de datos.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler mantiene dependencias para endpoints operativos.
type OpsHandler struct {
	logger   *zap.Logger
	db       Pinger
	gatherer prometheus.Gatherer
}

// NewOpsHandler crea una instancia de OpsHandler. gatherer nil usa el registry por defecto.
func NewOpsHandler(logger *zap.Logger, db Pinger, gatherer prometheus.Gatherer) *OpsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &OpsHandler{logger: logger, db: db, gatherer: gatherer}
}

// Health maneja GET /healthz.
func (h *OpsHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics devuelve el handler de Prometheus envuelto para gin.
func (h *OpsHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
