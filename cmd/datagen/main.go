// Command datagen seeds a Safeguard database with realistic demo data:
// registered persons, weeks of purchase history, and a handful of
// incidents. Purchases are replayed through the backfill workflow so
// daily totals, pattern findings, and risk scores come out consistent.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/datagen --persons 50 --days 30
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/config"
	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/engine"
	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/incident"
	"github.com/safeguardhq/safeguard/internal/logging"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
)

var firstNames = []string{
	"Ravi", "Anil", "Suresh", "Deepak", "Manoj", "Vijay", "Ramesh", "Santosh",
	"Prakash", "Ganesh", "Dinesh", "Mahesh", "Rajesh", "Ashok", "Sunil",
}

var lastNames = []string{
	"Kumar", "Sharma", "Patel", "Singh", "Nair", "Reddy", "Das", "Rao",
	"Verma", "Joshi", "Menon", "Pillai",
}

var beverages = []struct {
	kind  string
	brand string
	ml    int
	abv   float64
	price float64
}{
	{"whisky", "Royal Stag", 750, 42.8, 880},
	{"whisky", "Imperial Blue", 375, 42.8, 420},
	{"rum", "Old Monk", 750, 42.8, 620},
	{"beer", "Kingfisher Strong", 650, 8.0, 180},
	{"beer", "Haywards 5000", 650, 7.0, 160},
	{"vodka", "Magic Moments", 375, 42.8, 460},
	{"brandy", "Mansion House", 180, 42.8, 210},
}

var shops = []string{"shop-001", "shop-002", "shop-003", "shop-004", "shop-005"}

var incidentKinds = []struct {
	kind     string
	severity incident.Severity
}{
	{"public_intoxication", incident.SeverityMedium},
	{"drunk_driving", incident.SeverityHigh},
	{"disturbance", incident.SeverityLow},
}

func main() {
	personCount := flag.Int("persons", 25, "number of persons to register")
	days := flag.Int("days", 30, "days of purchase history to generate")
	seed := flag.Int64("seed", 0, "random seed (0 = time-based)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	logger := logging.New("info", "text")
	ctx := context.Background()

	var (
		persons   person.Store
		purchases purchase.Store
		totals    dailytotal.Store
		incidents incident.Store
		patterns  pattern.Store
		alerts    alert.Store
	)

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.Ping(); err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}

		personStore := person.NewPostgresStore(db)
		purchaseStore := purchase.NewPostgresStore(db)
		totalStore := dailytotal.NewPostgresStore(db)
		incidentStore := incident.NewPostgresStore(db)
		patternStore := pattern.NewPostgresStore(db)
		alertStore := alert.NewPostgresStore(db)

		for _, m := range []interface {
			Migrate(ctx context.Context) error
		}{personStore, purchaseStore, totalStore, incidentStore, patternStore, alertStore} {
			if err := m.Migrate(ctx); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
		}

		persons, purchases, totals = personStore, purchaseStore, totalStore
		incidents, patterns, alerts = incidentStore, patternStore, alertStore
		logger.Info("seeding postgres database")
	} else {
		persons = person.NewMemoryStore()
		purchases = purchase.NewMemoryStore()
		totals = dailytotal.NewMemoryStore()
		incidents = incident.NewMemoryStore()
		patterns = pattern.NewMemoryStore()
		alerts = alert.NewMemoryStore()
		logger.Warn("DATABASE_URL not set; seeding in-memory stores (data is discarded on exit)")
	}

	eng := engine.New(config.DefaultLimits(), engine.Deps{
		Persons:   persons,
		Purchases: purchases,
		Totals:    totals,
		Incidents: incidents,
		Patterns:  patterns,
		Alerts:    alerts,
		Logger:    logger,
	})

	// Register persons. A small share are heavy buyers so the detectors
	// and the scorer have something to find.
	ids := make([]string, 0, *personCount)
	heavy := make(map[string]bool)
	for i := 0; i < *personCount; i++ {
		p := &person.Person{
			ID:             idgen.WithPrefix("per_"),
			IdentityNumber: fmt.Sprintf("ID%010d", rng.Int63n(9_999_999_999)),
			Name:           firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))],
			Age:            21 + rng.Intn(45),
			RegisteredAt:   time.Now().UTC().AddDate(0, 0, -*days-rng.Intn(90)),
			RiskTier:       person.TierGreen,
		}
		if err := persons.Create(ctx, p); err != nil {
			logger.Error("failed to create person", "error", err)
			os.Exit(1)
		}
		ids = append(ids, p.ID)
		if rng.Float64() < 0.15 {
			heavy[p.ID] = true
		}
	}
	logger.Info("persons registered", "count", len(ids), "heavy_buyers", len(heavy))

	// Build a purchase history and replay it through the workflow.
	var records []engine.LogPurchaseInput
	now := time.Now().UTC()
	for _, id := range ids {
		for d := *days; d > 0; d-- {
			day := now.AddDate(0, 0, -d)

			buyChance := 0.25
			perDay := 1
			if heavy[id] {
				buyChance = 0.8
				perDay = 1 + rng.Intn(3)
			}
			if rng.Float64() > buyChance {
				continue
			}

			for n := 0; n < perDay; n++ {
				b := beverages[rng.Intn(len(beverages))]
				hour := 11 + rng.Intn(11) // shop hours
				if heavy[id] && rng.Float64() < 0.3 {
					hour = rng.Intn(6) // the occasional odd-hours buy
				}
				ts := time.Date(day.Year(), day.Month(), day.Day(), hour, rng.Intn(60), 0, 0, time.UTC)

				records = append(records, engine.LogPurchaseInput{
					PersonID:      id,
					ShopID:        shops[rng.Intn(len(shops))],
					Kind:          b.kind,
					Brand:         b.brand,
					VolumeML:      b.ml,
					ABVPercent:    b.abv,
					AmountPaid:    b.price,
					PaymentMethod: "cash",
					Timestamp:     ts,
				})
			}
		}
	}

	summary, err := eng.Backfill(ctx, records)
	if err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}
	logger.Info("purchase history seeded",
		"ingested", summary.Ingested,
		"skipped", summary.Skipped,
		"limit_breaches", summary.LimitBreaches,
	)

	// A few incidents against heavy buyers, then rescore them.
	incidentCount := 0
	for id := range heavy {
		if rng.Float64() > 0.5 {
			continue
		}
		k := incidentKinds[rng.Intn(len(incidentKinds))]
		inc := &incident.Incident{
			ID:           idgen.WithPrefix("inc_"),
			PersonID:     id,
			Kind:         k.kind,
			Date:         now.AddDate(0, 0, -rng.Intn(*days)),
			Location:     "Ward " + fmt.Sprint(1+rng.Intn(20)),
			ReportNumber: fmt.Sprintf("FIR-%04d", rng.Intn(10000)),
			Severity:     k.severity,
			ReportedBy:   "Local Police",
			CreatedAt:    now,
		}
		if err := incidents.Create(ctx, inc); err != nil {
			logger.Error("failed to create incident", "error", err)
			os.Exit(1)
		}
		incidentCount++

		if _, err := eng.Score(ctx, id); err != nil {
			logger.Warn("rescore after incident failed", "person_id", id, "error", err)
		}
	}
	logger.Info("incidents seeded", "count", incidentCount)

	fmt.Println("Seed complete")
	fmt.Printf("  Persons:   %d (%d heavy buyers)\n", len(ids), len(heavy))
	fmt.Printf("  Purchases: %d ingested, %d limit breaches\n", summary.Ingested, summary.LimitBreaches)
	fmt.Printf("  Incidents: %d\n", incidentCount)
	fmt.Printf("  Seed:      %d\n", *seed)
}
