package handlers

import (
	"errors"
	"net/http"
	"strings"

	"aquafarm/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errListAlerts   = "failed to list alerts"
	errAckAlert     = "failed to acknowledge alert"
	errResolveAlert = "failed to resolve alert"
)

// Request DTO for acknowledging an alert with a corrective action.
type correctiveActionRequest struct {
	Description string `json:"description" binding:"required"`
}

// @Summary      List alerts
// @Tags         alerts
// @Produce      json
// @Param        status  query  string  false  "Filter by status"  Enums(OPEN,ACKNOWLEDGED,RESOLVED)
// @Success      200  {object}  map[string]interface{}  "count, alerts"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/alerts [get]
// @Security     BearerAuth
func (h *Handler) listAlerts(c *gin.Context) {
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))

	alerts, err := h.services.Alerts.List(c.Request.Context(), status)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListAlerts,
			"alerts_list_failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// @Summary      Acknowledge an alert
// @Description  Attaches a corrective action and moves the alert to ACKNOWLEDGED.
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "Alert id"
// @Param        body  body  correctiveActionRequest  true  "Corrective action"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "Alert already RESOLVED"
// @Router       /api/v1/alerts/{id}/acknowledge [post]
// @Security     BearerAuth
func (h *Handler) acknowledgeAlert(c *gin.Context) {
	alertID := c.Param("id")

	var input correctiveActionRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	userID := c.GetInt("userId")
	err := h.services.Alerts.Acknowledge(c.Request.Context(), alertID, service.CorrectiveActionParams{
		Description: input.Description,
		PerformedBy: userID,
	})
	if err != nil {
		h.writeAlertError(c, alertID, err, errAckAlert, "alert_acknowledge_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "alert_id": alertID})
}

// @Summary      Resolve an alert
// @Description  Moves the alert to the terminal RESOLVED state.
// @Tags         alerts
// @Produce      json
// @Param        id  path  string  true  "Alert id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "Alert already RESOLVED"
// @Router       /api/v1/alerts/{id}/resolve [post]
// @Security     BearerAuth
func (h *Handler) resolveAlert(c *gin.Context) {
	alertID := c.Param("id")

	if err := h.services.Alerts.Resolve(c.Request.Context(), alertID); err != nil {
		h.writeAlertError(c, alertID, err, errResolveAlert, "alert_resolve_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved", "alert_id": alertID})
}

// writeAlertError maps alert domain errors onto HTTP statuses.
func (h *Handler) writeAlertError(c *gin.Context, alertID string, err error, userMsg, logKey string) {
	switch {
	case errors.Is(err, service.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyActionMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, "alert_id", alertID)
	}
}
