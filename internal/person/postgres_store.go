package person

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists persons in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed person store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the persons table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS persons (
			id                   VARCHAR(36) PRIMARY KEY,
			identity_number      VARCHAR(12) NOT NULL UNIQUE,
			name                 TEXT NOT NULL,
			age                  INT NOT NULL CHECK (age >= 18),
			address              TEXT NOT NULL DEFAULT '',
			phone                VARCHAR(10) NOT NULL DEFAULT '',
			registered_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			risk_score           NUMERIC(5,2) NOT NULL DEFAULT 0 CHECK (risk_score >= 0 AND risk_score <= 100),
			risk_tier            VARCHAR(10) NOT NULL DEFAULT 'Green' CHECK (risk_tier IN ('Green', 'Yellow', 'Red')),
			blocked              BOOLEAN NOT NULL DEFAULT FALSE,
			last_purchase_date   TIMESTAMPTZ,
			total_purchases      INT NOT NULL DEFAULT 0,
			total_units_consumed NUMERIC(12,3) NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_persons_risk_tier ON persons (risk_tier);
		CREATE INDEX IF NOT EXISTS idx_persons_blocked ON persons (blocked) WHERE blocked;
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, p *Person) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persons (id, identity_number, name, age, address, phone, registered_at,
			risk_score, risk_tier, blocked, total_purchases, total_units_consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID, p.IdentityNumber, p.Name, p.Age, p.Address, p.Phone, p.RegisteredAt,
		p.RiskScore, string(p.RiskTier), p.Blocked, p.TotalPurchases, p.TotalUnitsConsumed,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

const personColumns = `id, identity_number, name, age, address, phone, registered_at,
	risk_score, risk_tier, blocked, last_purchase_date, total_purchases, total_units_consumed`

func scanPerson(row interface{ Scan(...any) error }) (*Person, error) {
	var p Person
	var lastPurchase sql.NullTime
	err := row.Scan(&p.ID, &p.IdentityNumber, &p.Name, &p.Age, &p.Address, &p.Phone,
		&p.RegisteredAt, &p.RiskScore, &p.RiskTier, &p.Blocked, &lastPurchase,
		&p.TotalPurchases, &p.TotalUnitsConsumed)
	if err != nil {
		return nil, err
	}
	if lastPurchase.Valid {
		p.LastPurchaseDate = lastPurchase.Time
	}
	return &p, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetByIdentity(ctx context.Context, identityNumber string) (*Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE identity_number = $1`, identityNumber)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person by identity: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE 1=1`
	var args []any

	if filter.Tier != nil {
		args = append(args, string(*filter.Tier))
		query += fmt.Sprintf(" AND risk_tier = $%d", len(args))
	}
	if filter.Blocked != nil {
		args = append(args, *filter.Blocked)
		query += fmt.Sprintf(" AND blocked = $%d", len(args))
	}
	query += " ORDER BY risk_score DESC, registered_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			continue
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *PostgresStore) UpdateRisk(ctx context.Context, id string, score float64, tier Tier) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE persons SET risk_score = $2, risk_tier = $3 WHERE id = $1
	`, id, score, string(tier))
	if err != nil {
		return fmt.Errorf("failed to update risk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func (s *PostgresStore) RecordPurchaseStats(ctx context.Context, id string, units float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE persons SET
			total_purchases = total_purchases + 1,
			total_units_consumed = total_units_consumed + $2,
			last_purchase_date = GREATEST(COALESCE(last_purchase_date, $3), $3)
		WHERE id = $1
	`, id, units, at)
	if err != nil {
		return fmt.Errorf("failed to record purchase stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func (s *PostgresStore) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE persons SET blocked = $2 WHERE id = $1
	`, id, blocked)
	if err != nil {
		return fmt.Errorf("failed to set blocked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func (s *PostgresStore) CountByTier(ctx context.Context) (map[Tier]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_tier, COUNT(*) FROM persons GROUP BY risk_tier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by tier: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			continue
		}
		counts[Tier(tier)] = n
	}
	return counts, rows.Err()
}
