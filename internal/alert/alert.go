// Package alert records notifications the engine raises for reviewers.
// Delivery is out of scope: alerts are stored, listed, and acknowledged;
// the realtime hub fans them out best-effort.
package alert

import (
	"context"
	"errors"
	"time"
)

// Kind identifies what triggered an alert.
type Kind string

const (
	KindDailyLimitExceeded Kind = "DailyLimitExceeded"
	KindRiskLevelChange    Kind = "RiskLevelChange"
	KindPatternDetected    Kind = "PatternDetected"
)

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

var ErrAlertNotFound = errors.New("alert not found")

// Alert is one stored notification.
type Alert struct {
	ID             string    `json:"id"`
	PersonID       string    `json:"personId"`
	Kind           Kind      `json:"kind"`
	Message        string    `json:"message"`
	Severity       Severity  `json:"severity"`
	CreatedAt      time.Time `json:"createdAt"`
	Acknowledged   bool      `json:"acknowledged"`
	AcknowledgedAt time.Time `json:"acknowledgedAt,omitempty"`
}

// ListFilter narrows List results. Nil/zero fields mean "any".
type ListFilter struct {
	Acknowledged *bool
	Severity     Severity
	Limit        int
}

// Store persists alerts.
type Store interface {
	Create(ctx context.Context, a *Alert) error
	List(ctx context.Context, filter ListFilter) ([]*Alert, error)
	ListByPerson(ctx context.Context, personID string) ([]*Alert, error)

	// Acknowledge is idempotent.
	Acknowledge(ctx context.Context, id string) error

	CountUnacknowledged(ctx context.Context) (int, error)
}
