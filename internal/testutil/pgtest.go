// Package testutil provides shared test infrastructure for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	_ "github.com/lib/pq"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/incident"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
)

// appTables are truncated between tests, children before parents.
var appTables = []string{
	"alerts",
	"pattern_findings",
	"incidents",
	"daily_totals",
	"purchases",
	"persons",
}

// PGTest opens a test database connection, migrates the full schema, and
// returns the *sql.DB plus a cleanup function.
//
// Tests should call this at the top:
//
//	db, cleanup := testutil.PGTest(t)
//	defer cleanup()
//
// If POSTGRES_URL is not set, the test is skipped.
// The cleanup function truncates the application tables.
func PGTest(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("pgtest: open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: connect to database: %v", err)
	}

	// Migrate in FK order: persons first, then everything referencing it.
	ctx := context.Background()
	migrators := []interface {
		Migrate(ctx context.Context) error
	}{
		person.NewPostgresStore(db),
		purchase.NewPostgresStore(db),
		dailytotal.NewPostgresStore(db),
		incident.NewPostgresStore(db),
		pattern.NewPostgresStore(db),
		alert.NewPostgresStore(db),
	}
	for _, m := range migrators {
		if err := m.Migrate(ctx); err != nil {
			_ = db.Close()
			t.Fatalf("pgtest: migrate: %v", err)
		}
	}

	cleanup := func() {
		truncateAll(ctx, db)
		_ = db.Close()
	}

	return db, cleanup
}

// truncateAll truncates the application tables to provide a clean slate
// between tests. Uses TRUNCATE ... CASCADE to handle foreign keys.
func truncateAll(ctx context.Context, db *sql.DB) {
	var present []string
	for _, table := range appTables {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)`,
			table,
		).Scan(&exists)
		if err == nil && exists {
			present = append(present, table)
		}
	}

	if len(present) > 0 {
		stmt := "TRUNCATE " + strings.Join(present, ", ") + " CASCADE" // #nosec G202 -- fixed table list
		_, _ = db.ExecContext(ctx, stmt)                               // #nosec G104 -- best-effort cleanup in test teardown
	}
}
