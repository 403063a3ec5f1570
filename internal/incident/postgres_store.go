package incident

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists incidents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed incident store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the incidents table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS incidents (
			id            VARCHAR(36) PRIMARY KEY,
			person_id     VARCHAR(36) NOT NULL REFERENCES persons(id),
			kind          VARCHAR(64) NOT NULL,
			date          TIMESTAMPTZ NOT NULL,
			location      TEXT NOT NULL DEFAULT '',
			report_number VARCHAR(64) NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			severity      VARCHAR(10) NOT NULL CHECK (severity IN ('Low', 'Medium', 'High')),
			reported_by   VARCHAR(128) NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_incidents_person ON incidents (person_id, date DESC);
	`)
	return err
}

const incidentColumns = `id, person_id, kind, date, location, report_number,
	description, severity, reported_by, created_at`

func scanIncident(row interface{ Scan(...any) error }) (*Incident, error) {
	var inc Incident
	err := row.Scan(&inc.ID, &inc.PersonID, &inc.Kind, &inc.Date, &inc.Location,
		&inc.ReportNumber, &inc.Description, &inc.Severity, &inc.ReportedBy, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *PostgresStore) Create(ctx context.Context, inc *Incident) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, person_id, kind, date, location, report_number,
			description, severity, reported_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		inc.ID, inc.PersonID, inc.Kind, inc.Date, inc.Location, inc.ReportNumber,
		inc.Description, string(inc.Severity), inc.ReportedBy, inc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return inc, nil
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID string) ([]*Incident, error) {
	return s.queryIncidents(ctx, `
		SELECT `+incidentColumns+` FROM incidents
		WHERE person_id = $1 ORDER BY date DESC
	`, personID)
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	var args []any

	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryIncidents(ctx, query, args...)
}

func (s *PostgresStore) queryIncidents(ctx context.Context, query string, args ...any) ([]*Incident, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			continue
		}
		result = append(result, inc)
	}
	return result, rows.Err()
}

func (s *PostgresStore) CountSince(ctx context.Context, personID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM incidents WHERE person_id = $1 AND date >= $2
	`, personID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}
