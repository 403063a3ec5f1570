package alert

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the alert inbox.
type Handler struct {
	store Store
}

// NewHandler creates a new alert handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up alert routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.ListAlerts)
	r.GET("/persons/:id/alerts", h.ListByPerson)
	r.POST("/alerts/:id/ack", h.Acknowledge)
}

// ListAlerts handles GET /api/alerts?acknowledged=&severity=&limit=
func (h *Handler) ListAlerts(c *gin.Context) {
	filter := ListFilter{Limit: 100}

	if a := c.Query("acknowledged"); a != "" {
		acked := a == "true"
		filter.Acknowledged = &acked
	}
	if sev := c.Query("severity"); sev != "" {
		severity := Severity(sev)
		if severity != SeverityWarning && severity != SeverityCritical {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "severity must be Warning or Critical",
			})
			return
		}
		filter.Severity = severity
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			filter.Limit = parsed
		}
	}

	alerts, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	unacked, err := h.store.CountUnacknowledged(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":         alerts,
		"count":          len(alerts),
		"unacknowledged": unacked,
	})
}

// ListByPerson handles GET /api/persons/:id/alerts
func (h *Handler) ListByPerson(c *gin.Context) {
	alerts, err := h.store.ListByPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// Acknowledge handles POST /api/alerts/:id/ack
func (h *Handler) Acknowledge(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Acknowledge(c.Request.Context(), id); err != nil {
		if err == ErrAlertNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_id": id, "acknowledged": true})
}
