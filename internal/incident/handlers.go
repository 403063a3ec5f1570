package incident

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/logging"
	"github.com/safeguardhq/safeguard/internal/validation"
)

// Handler provides HTTP endpoints for incident reporting.
type Handler struct {
	store Store

	// onCreated runs after an incident is stored, so the person's risk
	// score reflects the new history. Best-effort; may be nil in tests.
	onCreated func(ctx context.Context, personID string)
}

// NewHandler creates a new incident handler.
func NewHandler(store Store, onCreated func(ctx context.Context, personID string)) *Handler {
	return &Handler{store: store, onCreated: onCreated}
}

// RegisterRoutes sets up incident routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/incidents", h.CreateIncident)
	r.GET("/incidents", h.ListIncidents)
	r.GET("/incidents/:id", h.GetIncident)
	r.GET("/persons/:id/incidents", h.ListByPerson)
}

// CreateIncidentRequest is the body for POST /api/incidents.
type CreateIncidentRequest struct {
	PersonID     string `json:"personId" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
	Date         string `json:"date"` // RFC3339, defaults to now
	Location     string `json:"location"`
	ReportNumber string `json:"reportNumber"`
	Description  string `json:"description"`
	Severity     string `json:"severity" binding:"required"`
	ReportedBy   string `json:"reportedBy"`
}

// CreateIncident handles POST /api/incidents
func (h *Handler) CreateIncident(c *gin.Context) {
	var req CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "personId, kind, and severity are required",
		})
		return
	}

	severity := Severity(req.Severity)
	if !severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "severity must be Low, Medium, or High",
		})
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "date must be RFC3339"})
			return
		}
		date = parsed
	}

	inc := &Incident{
		ID:           idgen.WithPrefix("inc_"),
		PersonID:     req.PersonID,
		Kind:         validation.SanitizeString(req.Kind, 64),
		Date:         date,
		Location:     validation.SanitizeString(req.Location, 200),
		ReportNumber: validation.SanitizeString(req.ReportNumber, 64),
		Description:  validation.SanitizeString(req.Description, 2000),
		Severity:     severity,
		ReportedBy:   validation.SanitizeString(req.ReportedBy, 128),
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.store.Create(c.Request.Context(), inc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	logging.L(c.Request.Context()).Info("incident reported",
		"incident_id", inc.ID, "person_id", inc.PersonID, "severity", string(inc.Severity))

	if h.onCreated != nil {
		h.onCreated(c.Request.Context(), inc.PersonID)
	}

	c.JSON(http.StatusCreated, gin.H{"incident": inc})
}

// GetIncident handles GET /api/incidents/:id
func (h *Handler) GetIncident(c *gin.Context) {
	inc, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrIncidentNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": inc})
}

// ListByPerson handles GET /api/persons/:id/incidents
func (h *Handler) ListByPerson(c *gin.Context) {
	incidents, err := h.store.ListByPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}

// ListIncidents handles GET /api/incidents?severity=&kind=&limit=
func (h *Handler) ListIncidents(c *gin.Context) {
	filter := ListFilter{Limit: 100}

	if sev := c.Query("severity"); sev != "" {
		severity := Severity(sev)
		if !severity.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "severity must be Low, Medium, or High",
			})
			return
		}
		filter.Severity = severity
	}
	filter.Kind = c.Query("kind")
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			filter.Limit = parsed
		}
	}

	incidents, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}
