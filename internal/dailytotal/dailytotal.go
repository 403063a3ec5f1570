// Package dailytotal tracks per-person per-day consumption against the
// daily unit cap.
//
// Rows are created lazily on first purchase of the day and units never
// decrease. Reserve is the single serialization point for limit
// enforcement: admission and increment happen as one atomic step, so
// concurrent purchases can never jointly exceed the cap.
package dailytotal

import (
	"context"
	"time"
)

// DailyTotal is one person's running consumption for one calendar day.
type DailyTotal struct {
	PersonID           string  `json:"personId"`
	Day                string  `json:"day"` // YYYY-MM-DD
	UnitsToday         float64 `json:"unitsToday"`
	PurchaseCountToday int     `json:"purchaseCountToday"`
}

// DayOf formats a timestamp as the calendar day key (UTC).
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Reservation is the outcome of an atomic admission attempt.
type Reservation struct {
	Admitted     bool    `json:"admitted"`
	CurrentUnits float64 `json:"currentUnits"` // before the attempt
	NewTotal     float64 `json:"newTotal"`     // after, when admitted
}

// Store persists daily totals.
type Store interface {
	// Get returns the total for the day. A missing row reads as zero.
	Get(ctx context.Context, personID, day string) (*DailyTotal, error)

	// Reserve atomically admits and adds units iff the new total would
	// stay within limit. On reject the row is untouched.
	Reserve(ctx context.Context, personID, day string, units, limit float64) (*Reservation, error)

	// Add increments unconditionally. Used for backfilled history where
	// the sale already happened and must be recorded regardless of cap.
	Add(ctx context.Context, personID, day string, units float64) (newTotal float64, err error)

	// CountViolations counts days where the person's total exceeded limit.
	CountViolations(ctx context.Context, personID string, limit float64) (int, error)
}
