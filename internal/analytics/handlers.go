// Package analytics provides JSON API endpoints for monitoring overviews.
package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
)

// Handler provides analytics API endpoints.
type Handler struct {
	persons   person.Store
	purchases purchase.Store
	alerts    alert.Store
	patterns  pattern.Store
}

// NewHandler creates a new analytics handler.
func NewHandler(persons person.Store, purchases purchase.Store, alerts alert.Store, patterns pattern.Store) *Handler {
	return &Handler{persons: persons, purchases: purchases, alerts: alerts, patterns: patterns}
}

// RegisterRoutes sets up analytics routes under the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analytics/dashboard", h.Dashboard)
	r.GET("/analytics/trends/purchases", h.PurchaseTrends)
	r.GET("/analytics/high-risk", h.HighRisk)
}

// Dashboard returns the reviewer overview: tier distribution, today's
// purchase activity, and open work (unacknowledged alerts, unreviewed
// pattern findings).
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	tiers, err := h.persons.CountByTier(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	purchasesToday, err := h.purchases.CountSince(ctx, "", startOfDay)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	unitsToday, err := h.purchases.SumUnitsSince(ctx, "", startOfDay)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	unacked, err := h.alerts.CountUnacknowledged(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	active, err := h.patterns.ListActive(ctx, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"persons": gin.H{
			"green":  tiers[person.TierGreen],
			"yellow": tiers[person.TierYellow],
			"red":    tiers[person.TierRed],
			"total":  tiers[person.TierGreen] + tiers[person.TierYellow] + tiers[person.TierRed],
		},
		"today": gin.H{
			"purchases": purchasesToday,
			"units":     unitsToday,
		},
		"unacknowledgedAlerts": unacked,
		"activeFindings":       len(active),
	})
}

// PurchaseTrends returns per-day purchase counts and units over the
// trailing window (default 30 days, capped at 365).
func (h *Handler) PurchaseTrends(c *gin.Context) {
	ctx := c.Request.Context()

	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_days", "message": "days must be a positive integer"})
			return
		}
		days = n
	}
	if days > 365 {
		days = 365
	}

	points, err := h.purchases.DailyStats(ctx, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":   days,
		"points": points,
		"count":  len(points),
	})
}

// HighRisk returns Red-tier persons ordered by score, highest first.
func (h *Handler) HighRisk(c *gin.Context) {
	ctx := c.Request.Context()

	limit := parseLimit(c, 50, 500)

	tier := person.TierRed
	persons, err := h.persons.List(ctx, person.ListFilter{Tier: &tier, Limit: limit})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"persons": persons,
		"count":   len(persons),
	})
}

func parseLimit(c *gin.Context, defaultVal, maxVal int) int {
	limit := defaultVal
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxVal {
		limit = maxVal
	}
	return limit
}
