// Package pattern stores behavioral pattern findings raised by the
// detection engine.
//
// Findings are append-only evidence: a reviewer can mark one reviewed,
// but nothing else mutates after detection. Unreviewed findings feed
// back into the risk score.
package pattern

import (
	"context"
	"errors"
	"time"
)

// Kind identifies which detector raised a finding.
type Kind string

const (
	KindBulkBuying  Kind = "BulkBuying"
	KindUnusualTime Kind = "UnusualTimePattern"
)

var ErrFindingNotFound = errors.New("pattern finding not found")

// Finding is one detector hit for one person.
type Finding struct {
	ID         string         `json:"id"`
	PersonID   string         `json:"personId"`
	Kind       Kind           `json:"kind"`
	DetectedAt time.Time      `json:"detectedAt"`
	Confidence float64        `json:"confidence"` // [0, 1]
	Evidence   map[string]any `json:"evidence"`
	Reviewed   bool           `json:"reviewed"`
	ReviewedBy string         `json:"reviewedBy,omitempty"`
	ReviewedAt time.Time      `json:"reviewedAt,omitempty"`
}

// Store persists pattern findings.
type Store interface {
	Create(ctx context.Context, f *Finding) error
	Get(ctx context.Context, id string) (*Finding, error)
	ListByPerson(ctx context.Context, personID string) ([]*Finding, error)
	ListUnreviewedByPerson(ctx context.Context, personID string) ([]*Finding, error)

	// ListActive returns unreviewed findings across all persons,
	// newest first.
	ListActive(ctx context.Context, limit int) ([]*Finding, error)

	MarkReviewed(ctx context.Context, id, reviewedBy string) error
}
