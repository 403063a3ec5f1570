package person

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/logging"
	"github.com/safeguardhq/safeguard/internal/validation"
)

// Handler provides HTTP endpoints for person registration and management.
type Handler struct {
	store Store
}

// NewHandler creates a new person handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up person routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/persons", h.CreatePerson)
	r.GET("/persons", h.ListPersons)
	r.GET("/persons/:id", h.GetPerson)
	r.POST("/persons/:id/block", h.BlockPerson)
	r.POST("/persons/:id/unblock", h.UnblockPerson)
}

// CreatePersonRequest is the body for POST /api/persons.
type CreatePersonRequest struct {
	IdentityNumber string `json:"identityNumber" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Age            int    `json:"age" binding:"required"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
}

// CreatePerson handles POST /api/persons
func (h *Handler) CreatePerson(c *gin.Context) {
	var req CreatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "identityNumber, name, and age are required",
		})
		return
	}

	if err := validation.IdentityNumber(req.IdentityNumber); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := validation.Age(req.Age); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := validation.Phone(req.Phone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	p := &Person{
		ID:             idgen.WithPrefix("per_"),
		IdentityNumber: req.IdentityNumber,
		Name:           validation.SanitizeString(req.Name, 200),
		Age:            req.Age,
		Address:        validation.SanitizeString(req.Address, 500),
		Phone:          req.Phone,
		RegisteredAt:   time.Now().UTC(),
		RiskTier:       TierGreen,
	}

	if err := h.store.Create(c.Request.Context(), p); err != nil {
		if err == ErrDuplicateIdentity {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already_exists",
				"message": "This identity number is already registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	logging.L(c.Request.Context()).Info("person registered", "person_id", p.ID)
	c.JSON(http.StatusCreated, gin.H{"person": p})
}

// GetPerson handles GET /api/persons/:id
func (h *Handler) GetPerson(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == ErrPersonNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"person": p})
}

// ListPersons handles GET /api/persons
func (h *Handler) ListPersons(c *gin.Context) {
	filter := ListFilter{Limit: 100}

	if t := c.Query("risk_tier"); t != "" {
		tier := Tier(t)
		if tier != TierGreen && tier != TierYellow && tier != TierRed {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "risk_tier must be Green, Yellow, or Red",
			})
			return
		}
		filter.Tier = &tier
	}
	if b := c.Query("blocked"); b != "" {
		blocked := b == "true"
		filter.Blocked = &blocked
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			filter.Limit = parsed
		}
	}

	persons, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"persons": persons, "count": len(persons)})
}

// BlockPerson handles POST /api/persons/:id/block
func (h *Handler) BlockPerson(c *gin.Context) {
	h.setBlocked(c, true)
}

// UnblockPerson handles POST /api/persons/:id/unblock
func (h *Handler) UnblockPerson(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *Handler) setBlocked(c *gin.Context, blocked bool) {
	id := c.Param("id")
	if err := h.store.SetBlocked(c.Request.Context(), id, blocked); err != nil {
		if err == ErrPersonNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	logging.L(c.Request.Context()).Info("person block state changed", "person_id", id, "blocked", blocked)
	c.JSON(http.StatusOK, gin.H{"person_id": id, "blocked": blocked})
}
