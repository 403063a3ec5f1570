// Package incident stores police and public-order reports linked to a
// registered person. Incidents feed the risk scorer's history factor.
package incident

import (
	"context"
	"errors"
	"time"
)

// Severity grades an incident report.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

var ErrIncidentNotFound = errors.New("incident not found")

// Incident is a reported event tied to a person.
type Incident struct {
	ID           string    `json:"id"`
	PersonID     string    `json:"personId"`
	Kind         string    `json:"kind"` // public_intoxication, drunk_driving, ...
	Date         time.Time `json:"date"`
	Location     string    `json:"location,omitempty"`
	ReportNumber string    `json:"reportNumber,omitempty"`
	Description  string    `json:"description,omitempty"`
	Severity     Severity  `json:"severity"`
	ReportedBy   string    `json:"reportedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ListFilter narrows List results. Zero fields mean "any".
type ListFilter struct {
	Severity Severity
	Kind     string
	Limit    int
}

// Store persists incidents.
type Store interface {
	Create(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, id string) (*Incident, error)

	// ListByPerson returns all of a person's incidents, newest first.
	ListByPerson(ctx context.Context, personID string) ([]*Incident, error)

	List(ctx context.Context, filter ListFilter) ([]*Incident, error)

	// CountSince counts incidents for a person since the given time.
	CountSince(ctx context.Context, personID string, since time.Time) (int, error)
}
