// Package person manages registered buyers and their risk standing.
//
// A person is created once per government identity number and is never
// deleted. Risk score and tier are derived state owned by the scoring
// engine; blocking is an operator action that stops all purchases.
package person

import (
	"context"
	"errors"
	"time"
)

// Tier buckets a risk score for display and alerting.
type Tier string

const (
	TierGreen  Tier = "Green"
	TierYellow Tier = "Yellow"
	TierRed    Tier = "Red"
)

// TierForScore maps a 0-100 risk score to a tier using the given thresholds.
func TierForScore(score, yellowAt, redAt float64) Tier {
	switch {
	case score >= redAt:
		return TierRed
	case score >= yellowAt:
		return TierYellow
	default:
		return TierGreen
	}
}

var (
	ErrPersonNotFound    = errors.New("person not found")
	ErrDuplicateIdentity = errors.New("identity number already registered")
)

// Person is a registered buyer.
type Person struct {
	ID                 string    `json:"id"`
	IdentityNumber     string    `json:"identityNumber"`
	Name               string    `json:"name"`
	Age                int       `json:"age"`
	Address            string    `json:"address,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	RegisteredAt       time.Time `json:"registeredAt"`
	RiskScore          float64   `json:"riskScore"`
	RiskTier           Tier      `json:"riskTier"`
	Blocked            bool      `json:"blocked"`
	LastPurchaseDate   time.Time `json:"lastPurchaseDate,omitempty"`
	TotalPurchases     int       `json:"totalPurchases"`
	TotalUnitsConsumed float64   `json:"totalUnitsConsumed"`
}

// ListFilter narrows List results. Nil fields mean "any".
type ListFilter struct {
	Tier    *Tier
	Blocked *bool
	Limit   int
}

// Store persists persons.
type Store interface {
	Create(ctx context.Context, p *Person) error
	Get(ctx context.Context, id string) (*Person, error)
	GetByIdentity(ctx context.Context, identityNumber string) (*Person, error)
	List(ctx context.Context, filter ListFilter) ([]*Person, error)

	// UpdateRisk overwrites the stored score and tier.
	UpdateRisk(ctx context.Context, id string, score float64, tier Tier) error

	// RecordPurchaseStats bumps the purchase counters after a committed purchase.
	RecordPurchaseStats(ctx context.Context, id string, units float64, at time.Time) error

	// SetBlocked is idempotent: blocking a blocked person is a no-op.
	SetBlocked(ctx context.Context, id string, blocked bool) error

	// CountByTier reports how many persons sit in each tier.
	CountByTier(ctx context.Context) (map[Tier]int, error)
}
