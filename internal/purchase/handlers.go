package purchase

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/pagination"
)

// Handler provides read-only HTTP endpoints over the purchase ledger.
// Logging a purchase goes through the engine workflow, not this handler.
type Handler struct {
	store Store
}

// NewHandler creates a new purchase handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up purchase query routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/purchases/recent", h.ListRecent)
	r.GET("/purchases/:id", h.GetPurchase)
	r.GET("/persons/:id/purchases", h.ListByPerson)
}

// GetPurchase handles GET /api/purchases/:id
func (h *Handler) GetPurchase(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrPurchaseNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase": p})
}

// ListByPerson handles GET /api/persons/:id/purchases?from=&to=&limit=
func (h *Handler) ListByPerson(c *gin.Context) {
	var r Range
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "from must be RFC3339"})
			return
		}
		r.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "to must be RFC3339"})
			return
		}
		r.To = t
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	purchases, err := h.store.ListByPerson(c.Request.Context(), c.Param("id"), r, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases, "count": len(purchases)})
}

// ListRecent handles GET /api/purchases/recent?limit=&cursor=
func (h *Handler) ListRecent(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid cursor"})
		return
	}

	// Fetch one extra row to decide whether a next page exists
	purchases, err := h.store.ListRecent(c.Request.Context(), limit+1, cursor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	page, next, hasMore := pagination.ComputePage(purchases, limit, func(p *Purchase) (time.Time, string) {
		return p.Timestamp, p.ID
	})

	resp := gin.H{"purchases": page, "count": len(page), "has_more": hasMore}
	if next != "" {
		resp["next_cursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}
