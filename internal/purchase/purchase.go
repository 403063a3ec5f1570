// Package purchase records individual alcohol sale transactions.
//
// Purchases are immutable once written: corrections happen by logging a
// new transaction, never by editing history. All risk scoring and pattern
// detection reads flow from this ledger.
package purchase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/safeguardhq/safeguard/internal/pagination"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

// Purchase is a single point-of-sale transaction.
type Purchase struct {
	ID            string    `json:"id"`
	PersonID      string    `json:"personId"`
	ShopID        string    `json:"shopId"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          string    `json:"kind"` // whisky, beer, rum, ...
	Brand         string    `json:"brand,omitempty"`
	VolumeML      int       `json:"volumeMl"`
	ABVPercent    float64   `json:"abvPercent"`
	Units         float64   `json:"units"`
	AmountPaid    float64   `json:"amountPaid,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Location      string    `json:"location,omitempty"`
}

// Units converts a volume and strength into standard drink units:
// (ml x ABV%) / 1000, rounded to 3 decimal places.
// A 750 ml bottle at 42.8% is 32.1 units.
func Units(volumeML int, abvPercent float64) float64 {
	return math.Round(float64(volumeML)*abvPercent) / 1000
}

// Range bounds a time window. Zero values mean unbounded.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// DailyStat is one day of aggregate purchase activity.
type DailyStat struct {
	Day   string  `json:"day"` // YYYY-MM-DD
	Count int     `json:"count"`
	Units float64 `json:"units"`
}

// Store persists purchases.
type Store interface {
	Create(ctx context.Context, p *Purchase) error
	Get(ctx context.Context, id string) (*Purchase, error)

	// ListByPerson returns a person's purchases in the range, newest first.
	ListByPerson(ctx context.Context, personID string, r Range, limit int) ([]*Purchase, error)

	// ListRecent returns the newest purchases across all persons with
	// cursor pagination (strictly older than the cursor position).
	ListRecent(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*Purchase, error)

	// CountSince counts purchases since the given time. Empty personID
	// counts across all persons.
	CountSince(ctx context.Context, personID string, since time.Time) (int, error)

	// SumUnitsSince totals units since the given time. Empty personID
	// sums across all persons.
	SumUnitsSince(ctx context.Context, personID string, since time.Time) (float64, error)

	// DailyStats aggregates per-day counts and units over the trailing
	// number of days, oldest day first.
	DailyStats(ctx context.Context, days int) ([]DailyStat, error)
}
