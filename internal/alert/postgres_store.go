package alert

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists alerts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed alert store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the alerts table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id              VARCHAR(36) PRIMARY KEY,
			person_id       VARCHAR(36) NOT NULL REFERENCES persons(id),
			kind            VARCHAR(32) NOT NULL,
			message         TEXT NOT NULL,
			severity        VARCHAR(10) NOT NULL CHECK (severity IN ('Warning', 'Critical')),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			acknowledged    BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_person ON alerts (person_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_alerts_unacked
			ON alerts (created_at DESC) WHERE NOT acknowledged;
	`)
	return err
}

const alertColumns = `id, person_id, kind, message, severity, created_at, acknowledged, acknowledged_at`

func scanAlert(row interface{ Scan(...any) error }) (*Alert, error) {
	var a Alert
	var ackedAt sql.NullTime
	err := row.Scan(&a.ID, &a.PersonID, &a.Kind, &a.Message, &a.Severity,
		&a.CreatedAt, &a.Acknowledged, &ackedAt)
	if err != nil {
		return nil, err
	}
	if ackedAt.Valid {
		a.AcknowledgedAt = ackedAt.Time
	}
	return &a, nil
}

func (s *PostgresStore) Create(ctx context.Context, a *Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, person_id, kind, message, severity, created_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.PersonID, string(a.Kind), a.Message, string(a.Severity), a.CreatedAt, a.Acknowledged)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []any

	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		query += fmt.Sprintf(" AND acknowledged = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryAlerts(ctx, query, args...)
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID string) ([]*Alert, error) {
	return s.queryAlerts(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE person_id = $1 ORDER BY created_at DESC
	`, personID)
}

func (s *PostgresStore) queryAlerts(ctx context.Context, query string, args ...any) ([]*Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			continue
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Acknowledge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts
		SET acknowledged = TRUE,
			acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (s *PostgresStore) CountUnacknowledged(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE NOT acknowledged`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unacknowledged alerts: %w", err)
	}
	return count, nil
}
