package engine

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/validation"
)

// Handler exposes the purchase workflow and risk evaluation over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new engine handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up workflow routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/purchases", h.LogPurchase)
	r.POST("/purchases/backfill", h.Backfill)
	r.GET("/persons/:id/risk", h.GetRisk)
}

// LogPurchaseRequest is the body for POST /api/purchases.
type LogPurchaseRequest struct {
	PersonID      string  `json:"personId" binding:"required"`
	ShopID        string  `json:"shopId" binding:"required"`
	Kind          string  `json:"kind" binding:"required"`
	Brand         string  `json:"brand"`
	VolumeML      int     `json:"volumeMl"`
	ABVPercent    float64 `json:"abvPercent"`
	Units         float64 `json:"units"`
	AmountPaid    float64 `json:"amountPaid"`
	PaymentMethod string  `json:"paymentMethod"`
	Location      string  `json:"location"`
	Timestamp     string  `json:"timestamp"` // RFC3339, defaults to now
}

// LogPurchase handles POST /api/purchases
func (h *Handler) LogPurchase(c *gin.Context) {
	var req LogPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "personId, shopId, and kind are required",
		})
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "timestamp must be RFC3339"})
			return
		}
		ts = parsed
	}

	result, err := h.engine.LogPurchase(c.Request.Context(), LogPurchaseInput{
		PersonID:      req.PersonID,
		ShopID:        validation.SanitizeString(req.ShopID, 64),
		Kind:          validation.SanitizeString(req.Kind, 32),
		Brand:         validation.SanitizeString(req.Brand, 100),
		VolumeML:      req.VolumeML,
		ABVPercent:    req.ABVPercent,
		Units:         req.Units,
		AmountPaid:    req.AmountPaid,
		PaymentMethod: validation.SanitizeString(req.PaymentMethod, 32),
		Location:      validation.SanitizeString(req.Location, 200),
		Timestamp:     ts,
	})
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"purchase":              result.Purchase,
		"patterns_detected":     result.PatternsDetected,
		"remaining_units_today": result.RemainingUnitsToday,
	})
}

func (h *Handler) writeWorkflowError(c *gin.Context, err error) {
	var limitErr *LimitExceededError
	switch {
	case errors.Is(err, person.ErrPersonNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Person not found"})
	case errors.Is(err, ErrPersonBlocked):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "blocked",
			"message": "This person is blocked from purchasing",
		})
	case errors.As(err, &limitErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error":               "limit_exceeded",
			"message":             limitErr.Error(),
			"current_units_today": limitErr.CurrentUnits,
			"limit":               limitErr.Limit,
			"attempted_units":     limitErr.AttemptedUnits,
		})
	case errors.Is(err, ErrBadInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}

// BackfillRequest is the body for POST /api/purchases/backfill.
type BackfillRequest struct {
	Records []LogPurchaseRequest `json:"records" binding:"required"`
}

// Backfill handles POST /api/purchases/backfill. Historical records are
// ingested in advisory mode: breaches are alerted, never rejected.
func (h *Handler) Backfill(c *gin.Context) {
	var req BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "records array is required",
		})
		return
	}

	inputs := make([]LogPurchaseInput, 0, len(req.Records))
	for _, r := range req.Records {
		var ts time.Time
		if r.Timestamp != "" {
			// Unparseable timestamps stay zero and the record is skipped
			ts, _ = time.Parse(time.RFC3339, r.Timestamp)
		}
		inputs = append(inputs, LogPurchaseInput{
			PersonID:      r.PersonID,
			ShopID:        validation.SanitizeString(r.ShopID, 64),
			Kind:          validation.SanitizeString(r.Kind, 32),
			Brand:         validation.SanitizeString(r.Brand, 100),
			VolumeML:      r.VolumeML,
			ABVPercent:    r.ABVPercent,
			Units:         r.Units,
			AmountPaid:    r.AmountPaid,
			PaymentMethod: validation.SanitizeString(r.PaymentMethod, 32),
			Location:      validation.SanitizeString(r.Location, 200),
			Timestamp:     ts,
		})
	}

	summary, err := h.engine.Backfill(c.Request.Context(), inputs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingested":       summary.Ingested,
		"skipped":        summary.Skipped,
		"limit_breaches": summary.LimitBreaches,
	})
}

// GetRisk handles GET /api/persons/:id/risk — a fresh recomputation,
// not the stored score.
func (h *Handler) GetRisk(c *gin.Context) {
	result, err := h.engine.Score(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, person.ErrPersonNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"person_id": result.PersonID,
		"score":     result.Score,
		"tier":      result.Tier,
		"factors":   result.Factors,
	})
}
