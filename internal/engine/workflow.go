package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/metrics"
	"github.com/safeguardhq/safeguard/internal/purchase"
	"github.com/safeguardhq/safeguard/internal/retry"
	"github.com/safeguardhq/safeguard/internal/traces"
	"github.com/safeguardhq/safeguard/internal/validation"
)

// LogPurchaseInput carries one point-of-sale transaction into the engine.
// Units may be given explicitly; otherwise they are derived from volume
// and ABV.
type LogPurchaseInput struct {
	PersonID      string
	ShopID        string
	Kind          string
	Brand         string
	VolumeML      int
	ABVPercent    float64
	Units         float64 // optional; derived when zero
	AmountPaid    float64
	PaymentMethod string
	Location      string
	Timestamp     time.Time // optional; defaults to now
}

// LogPurchaseResult reports a committed purchase.
type LogPurchaseResult struct {
	Purchase            *purchase.Purchase `json:"purchase"`
	PatternsDetected    []Detection        `json:"patternsDetected"`
	RemainingUnitsToday float64            `json:"remainingUnitsToday"`
}

// resolveUnits derives the unit count from the input, validating bounds.
func (e *Engine) resolveUnits(in LogPurchaseInput) (float64, error) {
	units := in.Units
	if units == 0 {
		if in.VolumeML <= 0 || in.ABVPercent <= 0 {
			return 0, fmt.Errorf("%w: provide units, or volumeMl and abvPercent", ErrBadInput)
		}
		if err := validation.VolumeML(in.VolumeML); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrBadInput, err)
		}
		units = purchase.Units(in.VolumeML, in.ABVPercent)
	}
	if err := validation.Units(units); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadInput, err)
	}
	return units, nil
}

// LogPurchase runs the full purchase workflow: person lookup, blocked
// check, unit resolution, atomic limit admission, persistence, then a
// best-effort rescore and detector sweep. A rejected purchase persists
// nothing.
func (e *Engine) LogPurchase(ctx context.Context, in LogPurchaseInput) (*LogPurchaseResult, error) {
	ctx, span := traces.StartSpan(ctx, "engine.LogPurchase",
		traces.PersonID(in.PersonID), traces.ShopID(in.ShopID))
	defer span.End()

	p, err := e.persons.Get(ctx, in.PersonID)
	if err != nil {
		metrics.PurchasesTotal.WithLabelValues("rejected_invalid").Inc()
		return nil, err
	}
	if p.Blocked {
		metrics.PurchasesTotal.WithLabelValues("rejected_blocked").Inc()
		return nil, ErrPersonBlocked
	}

	units, err := e.resolveUnits(in)
	if err != nil {
		metrics.PurchasesTotal.WithLabelValues("rejected_invalid").Inc()
		return nil, err
	}
	span.SetAttributes(traces.Units(units))

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	decision, err := e.CheckAndReserve(ctx, in.PersonID, units, ts)
	if err != nil {
		return nil, err
	}
	if !decision.Admitted {
		metrics.PurchasesTotal.WithLabelValues("rejected_limit").Inc()
		return nil, &LimitExceededError{
			CurrentUnits:   decision.CurrentUnits,
			Limit:          e.limits.DailyUnitLimit,
			AttemptedUnits: units,
		}
	}

	pur := &purchase.Purchase{
		ID:            idgen.WithPrefix("pur_"),
		PersonID:      in.PersonID,
		ShopID:        in.ShopID,
		Timestamp:     ts,
		Kind:          in.Kind,
		Brand:         in.Brand,
		VolumeML:      in.VolumeML,
		ABVPercent:    in.ABVPercent,
		Units:         units,
		AmountPaid:    in.AmountPaid,
		PaymentMethod: in.PaymentMethod,
		Location:      in.Location,
	}
	if err := e.purchases.Create(ctx, pur); err != nil {
		return nil, fmt.Errorf("failed to persist purchase: %w", err)
	}

	if err := e.persons.RecordPurchaseStats(ctx, in.PersonID, units, ts); err != nil {
		e.logger.Error("failed to update person purchase stats",
			"person_id", in.PersonID, "error", err)
	}

	metrics.PurchasesTotal.WithLabelValues("logged").Inc()
	e.logger.Info("purchase logged",
		"purchase_id", pur.ID, "person_id", in.PersonID, "shop_id", in.ShopID,
		"units", units, "remaining_today", decision.RemainingUnits)
	if e.emitter != nil {
		e.emitter.PurchaseLogged(pur)
	}

	// Post-commit analysis is best-effort: the sale stands even if
	// scoring or detection fails.
	detections := e.analyze(ctx, in.PersonID)

	return &LogPurchaseResult{
		Purchase:            pur,
		PatternsDetected:    detections,
		RemainingUnitsToday: decision.RemainingUnits,
	}, nil
}

func (e *Engine) analyze(ctx context.Context, personID string) []Detection {
	var detections []Detection
	err := retry.Do(ctx, 3, 50*time.Millisecond, func() error {
		var err error
		detections, err = e.RunDetectors(ctx, personID)
		return err
	})
	if err != nil {
		e.logger.Warn("pattern detection failed after purchase",
			"person_id", personID, "error", err)
	}

	// Detectors run first so fresh flags feed the score.
	err = retry.Do(ctx, 3, 50*time.Millisecond, func() error {
		_, err := e.Score(ctx, personID)
		return err
	})
	if err != nil {
		e.logger.Warn("rescore failed after purchase",
			"person_id", personID, "error", err)
	}
	return detections
}

// BackfillSummary reports a historical import.
type BackfillSummary struct {
	Ingested      int `json:"ingested"`
	Skipped       int `json:"skipped"`
	LimitBreaches int `json:"limitBreaches"`
}

// Backfill ingests historical purchases through the advisory path: the
// cap cannot reject a sale that already happened, but breaches still
// raise alerts. Persons are rescored once at the end, not per record.
func (e *Engine) Backfill(ctx context.Context, records []LogPurchaseInput) (*BackfillSummary, error) {
	summary := &BackfillSummary{}
	touched := make(map[string]bool)

	for _, in := range records {
		if in.Timestamp.IsZero() {
			summary.Skipped++
			continue
		}
		if _, err := e.persons.Get(ctx, in.PersonID); err != nil {
			summary.Skipped++
			continue
		}
		units, err := e.resolveUnits(in)
		if err != nil {
			summary.Skipped++
			continue
		}

		newTotal, err := e.RecordConsumption(ctx, in.PersonID, units, in.Timestamp)
		if err != nil {
			return summary, err
		}
		if newTotal > e.limits.DailyUnitLimit {
			summary.LimitBreaches++
		}

		pur := &purchase.Purchase{
			ID:            idgen.WithPrefix("pur_"),
			PersonID:      in.PersonID,
			ShopID:        in.ShopID,
			Timestamp:     in.Timestamp,
			Kind:          in.Kind,
			Brand:         in.Brand,
			VolumeML:      in.VolumeML,
			ABVPercent:    in.ABVPercent,
			Units:         units,
			AmountPaid:    in.AmountPaid,
			PaymentMethod: in.PaymentMethod,
			Location:      in.Location,
		}
		if err := e.purchases.Create(ctx, pur); err != nil {
			return summary, fmt.Errorf("failed to persist backfilled purchase: %w", err)
		}
		if err := e.persons.RecordPurchaseStats(ctx, in.PersonID, units, in.Timestamp); err != nil {
			e.logger.Error("failed to update person stats during backfill",
				"person_id", in.PersonID, "error", err)
		}

		touched[in.PersonID] = true
		summary.Ingested++
	}

	for personID := range touched {
		if _, err := e.RunDetectors(ctx, personID); err != nil {
			e.logger.Warn("detector sweep failed during backfill", "person_id", personID, "error", err)
		}
		if _, err := e.Score(ctx, personID); err != nil {
			e.logger.Warn("rescore failed during backfill", "person_id", personID, "error", err)
		}
	}

	e.logger.Info("backfill complete",
		"ingested", summary.Ingested, "skipped", summary.Skipped,
		"limit_breaches", summary.LimitBreaches)
	return summary, nil
}
