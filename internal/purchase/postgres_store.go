package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safeguardhq/safeguard/internal/pagination"
)

// PostgresStore persists purchases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed purchase store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the purchases table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS purchases (
			id             VARCHAR(36) PRIMARY KEY,
			person_id      VARCHAR(36) NOT NULL REFERENCES persons(id),
			shop_id        VARCHAR(64) NOT NULL,
			ts             TIMESTAMPTZ NOT NULL,
			kind           VARCHAR(32) NOT NULL,
			brand          TEXT NOT NULL DEFAULT '',
			volume_ml      INT NOT NULL CHECK (volume_ml > 0),
			abv_percent    NUMERIC(5,2) NOT NULL CHECK (abv_percent >= 0),
			units          NUMERIC(8,3) NOT NULL CHECK (units > 0),
			amount_paid    NUMERIC(12,2) NOT NULL DEFAULT 0,
			payment_method VARCHAR(32) NOT NULL DEFAULT '',
			location       TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_purchases_person_ts
			ON purchases (person_id, ts DESC);
		CREATE INDEX IF NOT EXISTS idx_purchases_ts ON purchases (ts DESC, id DESC);
	`)
	return err
}

const purchaseColumns = `id, person_id, shop_id, ts, kind, brand, volume_ml,
	abv_percent, units, amount_paid, payment_method, location`

func scanPurchase(row interface{ Scan(...any) error }) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.PersonID, &p.ShopID, &p.Timestamp, &p.Kind, &p.Brand,
		&p.VolumeML, &p.ABVPercent, &p.Units, &p.AmountPaid, &p.PaymentMethod, &p.Location)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Purchase) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, person_id, shop_id, ts, kind, brand, volume_ml,
			abv_percent, units, amount_paid, payment_method, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID, p.PersonID, p.ShopID, p.Timestamp, p.Kind, p.Brand, p.VolumeML,
		p.ABVPercent, p.Units, p.AmountPaid, p.PaymentMethod, p.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID string, r Range, limit int) ([]*Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE person_id = $1`
	args := []any{personID}

	if !r.From.IsZero() {
		args = append(args, r.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY ts DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryPurchases(ctx, query, args...)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases`
	var args []any

	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += ` WHERE (ts, id) < ($1, $2)`
	}
	query += " ORDER BY ts DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryPurchases(ctx, query, args...)
}

func (s *PostgresStore) queryPurchases(ctx context.Context, query string, args ...any) ([]*Purchase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			continue
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *PostgresStore) CountSince(ctx context.Context, personID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM purchases WHERE ts >= $1`
	args := []any{since}
	if personID != "" {
		args = append(args, personID)
		query += " AND person_id = $2"
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count purchases: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SumUnitsSince(ctx context.Context, personID string, since time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(units), 0) FROM purchases WHERE ts >= $1`
	args := []any{since}
	if personID != "" {
		args = append(args, personID)
		query += " AND person_id = $2"
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum units: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) DailyStats(ctx context.Context, days int) ([]DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT TO_CHAR(ts AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*), COALESCE(SUM(units), 0)
		FROM purchases
		WHERE ts >= NOW() - ($1 || ' days')::INTERVAL
		GROUP BY day
		ORDER BY day ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []DailyStat
	for rows.Next() {
		var stat DailyStat
		if err := rows.Scan(&stat.Day, &stat.Count, &stat.Units); err != nil {
			continue
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}
