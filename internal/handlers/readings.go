package handlers

import (
	"net/http"
	"time"

	"aquafarm/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusAccepted = "accepted"

	errIngestReading = "failed to process reading"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for pushing telemetry.
type readingRequest struct {
	SensorID   int       `json:"sensor_id" binding:"required"`
	Value      float64   `json:"value"`
	MeasuredAt time.Time `json:"measured_at,omitempty"` // RFC3339; empty means "now"
	Warning    bool      `json:"warning,omitempty"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Ingest a sensor reading
// @Description  Stores the reading and evaluates thresholds and sensor-based jobs.
// @Tags         readings
// @Accept       json
// @Produce      json
// @Param        body  body  readingRequest  true  "Reading"
// @Success      200  {object}  map[string]interface{}  "status, reading"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/readings [post]
// @Security     BearerAuth
func (h *Handler) ingestReading(c *gin.Context) {
	var input readingRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	reading, err := h.services.Ingest.HandleReading(c.Request.Context(), service.ReadingParams{
		SensorID:   input.SensorID,
		Value:      input.Value,
		MeasuredAt: input.MeasuredAt,
		Warning:    input.Warning,
	})
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errIngestReading,
			"reading_ingest_failed", err, "sensor_id", input.SensorID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  statusAccepted,
		"reading": reading,
	})
}
