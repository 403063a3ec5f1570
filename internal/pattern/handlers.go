package pattern

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/logging"
)

// Handler provides HTTP endpoints for pattern finding review.
type Handler struct {
	store Store
}

// NewHandler creates a new pattern handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up pattern routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patterns", h.ListActive)
	r.GET("/persons/:id/patterns", h.ListByPerson)
	r.POST("/patterns/:id/review", h.Review)
}

// ListActive handles GET /api/patterns — the review queue.
func (h *Handler) ListActive(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	findings, err := h.store.ListActive(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

// ListByPerson handles GET /api/persons/:id/patterns
func (h *Handler) ListByPerson(c *gin.Context) {
	findings, err := h.store.ListByPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

// Review handles POST /api/patterns/:id/review
func (h *Handler) Review(c *gin.Context) {
	var body struct {
		ReviewedBy string `json:"reviewedBy"`
	}
	_ = c.ShouldBindJSON(&body)

	id := c.Param("id")
	if err := h.store.MarkReviewed(c.Request.Context(), id, body.ReviewedBy); err != nil {
		if err == ErrFindingNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Pattern finding not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	logging.L(c.Request.Context()).Info("pattern finding reviewed", "finding_id", id)
	c.JSON(http.StatusOK, gin.H{"finding_id": id, "reviewed": true})
}
