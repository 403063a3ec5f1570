package pattern

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists pattern findings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed pattern finding store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the pattern_findings table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pattern_findings (
			id          VARCHAR(36) PRIMARY KEY,
			person_id   VARCHAR(36) NOT NULL REFERENCES persons(id),
			kind        VARCHAR(32) NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL,
			confidence  NUMERIC(4,3) NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
			evidence    JSONB NOT NULL DEFAULT '{}',
			reviewed    BOOLEAN NOT NULL DEFAULT FALSE,
			reviewed_by VARCHAR(128) NOT NULL DEFAULT '',
			reviewed_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_pattern_findings_person
			ON pattern_findings (person_id, detected_at DESC);
		CREATE INDEX IF NOT EXISTS idx_pattern_findings_active
			ON pattern_findings (detected_at DESC) WHERE NOT reviewed;
	`)
	return err
}

const findingColumns = `id, person_id, kind, detected_at, confidence, evidence,
	reviewed, reviewed_by, reviewed_at`

func scanFinding(row interface{ Scan(...any) error }) (*Finding, error) {
	var f Finding
	var evidenceJSON []byte
	var reviewedAt sql.NullTime
	err := row.Scan(&f.ID, &f.PersonID, &f.Kind, &f.DetectedAt, &f.Confidence,
		&evidenceJSON, &f.Reviewed, &f.ReviewedBy, &reviewedAt)
	if err != nil {
		return nil, err
	}
	f.Evidence = make(map[string]any)
	_ = json.Unmarshal(evidenceJSON, &f.Evidence)
	if reviewedAt.Valid {
		f.ReviewedAt = reviewedAt.Time
	}
	return &f, nil
}

func (s *PostgresStore) Create(ctx context.Context, f *Finding) error {
	evidenceJSON, err := json.Marshal(f.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pattern_findings (id, person_id, kind, detected_at, confidence, evidence, reviewed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.PersonID, string(f.Kind), f.DetectedAt, f.Confidence, evidenceJSON, f.Reviewed)
	if err != nil {
		return fmt.Errorf("failed to create pattern finding: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Finding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+findingColumns+` FROM pattern_findings WHERE id = $1`, id)
	f, err := scanFinding(row)
	if err == sql.ErrNoRows {
		return nil, ErrFindingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern finding: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID string) ([]*Finding, error) {
	return s.queryFindings(ctx, `
		SELECT `+findingColumns+` FROM pattern_findings
		WHERE person_id = $1 ORDER BY detected_at DESC
	`, personID)
}

func (s *PostgresStore) ListUnreviewedByPerson(ctx context.Context, personID string) ([]*Finding, error) {
	return s.queryFindings(ctx, `
		SELECT `+findingColumns+` FROM pattern_findings
		WHERE person_id = $1 AND NOT reviewed ORDER BY detected_at DESC
	`, personID)
}

func (s *PostgresStore) ListActive(ctx context.Context, limit int) ([]*Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM pattern_findings WHERE NOT reviewed ORDER BY detected_at DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}
	return s.queryFindings(ctx, query, args...)
}

func (s *PostgresStore) queryFindings(ctx context.Context, query string, args ...any) ([]*Finding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pattern findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			continue
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (s *PostgresStore) MarkReviewed(ctx context.Context, id, reviewedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pattern_findings
		SET reviewed = TRUE, reviewed_by = $2, reviewed_at = $3
		WHERE id = $1
	`, id, reviewedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark finding reviewed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFindingNotFound
	}
	return nil
}
