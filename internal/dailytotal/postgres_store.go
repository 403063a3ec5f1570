package dailytotal

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists daily totals in PostgreSQL. Atomicity of Reserve
// comes from a single conditional UPDATE: the row lock serializes
// concurrent attempts for the same (person, day).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed daily total store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the daily_totals table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS daily_totals (
			person_id            VARCHAR(36) NOT NULL REFERENCES persons(id),
			day                  DATE NOT NULL,
			units_today          NUMERIC(8,3) NOT NULL DEFAULT 0 CHECK (units_today >= 0),
			purchase_count_today INT NOT NULL DEFAULT 0,
			PRIMARY KEY (person_id, day)
		);
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, personID, day string) (*DailyTotal, error) {
	t := &DailyTotal{PersonID: personID, Day: day}
	err := s.db.QueryRowContext(ctx, `
		SELECT units_today, purchase_count_today
		FROM daily_totals WHERE person_id = $1 AND day = $2
	`, personID, day).Scan(&t.UnitsToday, &t.PurchaseCountToday)
	if err == sql.ErrNoRows {
		return t, nil // missing row reads as zero
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily total: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, personID, day string, units, limit float64) (*Reservation, error) {
	if err := s.ensureRow(ctx, personID, day); err != nil {
		return nil, err
	}

	// Conditional increment: rows that would exceed the limit are left
	// untouched and the UPDATE matches nothing.
	var newTotal float64
	err := s.db.QueryRowContext(ctx, `
		UPDATE daily_totals
		SET units_today = units_today + $3,
			purchase_count_today = purchase_count_today + 1
		WHERE person_id = $1 AND day = $2 AND units_today + $3 <= $4
		RETURNING units_today
	`, personID, day, units, limit).Scan(&newTotal)

	if err == sql.ErrNoRows {
		current, getErr := s.Get(ctx, personID, day)
		if getErr != nil {
			return nil, getErr
		}
		return &Reservation{
			Admitted:     false,
			CurrentUnits: current.UnitsToday,
			NewTotal:     current.UnitsToday,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve units: %w", err)
	}

	return &Reservation{
		Admitted:     true,
		CurrentUnits: newTotal - units,
		NewTotal:     newTotal,
	}, nil
}

func (s *PostgresStore) Add(ctx context.Context, personID, day string, units float64) (float64, error) {
	if err := s.ensureRow(ctx, personID, day); err != nil {
		return 0, err
	}

	var newTotal float64
	err := s.db.QueryRowContext(ctx, `
		UPDATE daily_totals
		SET units_today = units_today + $3,
			purchase_count_today = purchase_count_today + 1
		WHERE person_id = $1 AND day = $2
		RETURNING units_today
	`, personID, day, units).Scan(&newTotal)
	if err != nil {
		return 0, fmt.Errorf("failed to add units: %w", err)
	}
	return newTotal, nil
}

func (s *PostgresStore) ensureRow(ctx context.Context, personID, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_totals (person_id, day, units_today, purchase_count_today)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (person_id, day) DO NOTHING
	`, personID, day)
	if err != nil {
		return fmt.Errorf("failed to ensure daily total row: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountViolations(ctx context.Context, personID string, limit float64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM daily_totals
		WHERE person_id = $1 AND units_today > $2
	`, personID, limit).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}
