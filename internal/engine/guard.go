package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/metrics"
)

// Decision is the outcome of a daily-limit admission attempt.
type Decision struct {
	Admitted       bool    `json:"admitted"`
	CurrentUnits   float64 `json:"currentUnits"`
	NewTotal       float64 `json:"newTotal"`
	RemainingUnits float64 `json:"remainingUnits"` // limit minus total; may be <= 0 on reject
}

// CheckAndReserve atomically admits the units against the person's daily
// cap. Admission and increment are one operation: on reject nothing is
// recorded and the remaining headroom is reported as limit - current.
func (e *Engine) CheckAndReserve(ctx context.Context, personID string, units float64, at time.Time) (*Decision, error) {
	day := dailytotal.DayOf(at)
	res, err := e.totals.Reserve(ctx, personID, day, units, e.limits.DailyUnitLimit)
	if err != nil {
		return nil, fmt.Errorf("daily limit reservation failed: %w", err)
	}

	d := &Decision{
		Admitted:       res.Admitted,
		CurrentUnits:   res.CurrentUnits,
		NewTotal:       res.NewTotal,
		RemainingUnits: e.limits.DailyUnitLimit - res.NewTotal,
	}
	if !res.Admitted {
		metrics.LimitRejectionsTotal.Inc()
		e.logger.Info("purchase rejected by daily limit",
			"person_id", personID, "day", day,
			"current_units", res.CurrentUnits, "attempted_units", units,
			"limit", e.limits.DailyUnitLimit)
	}
	return d, nil
}

// RecordConsumption increments the daily total unconditionally. It is the
// advisory path for backfilled history: the sale already happened, so the
// cap cannot reject it, but crossing the limit raises a Warning alert.
func (e *Engine) RecordConsumption(ctx context.Context, personID string, units float64, at time.Time) (float64, error) {
	day := dailytotal.DayOf(at)
	newTotal, err := e.totals.Add(ctx, personID, day, units)
	if err != nil {
		return 0, fmt.Errorf("daily total update failed: %w", err)
	}

	if newTotal > e.limits.DailyUnitLimit && newTotal-units <= e.limits.DailyUnitLimit {
		// Only the increment that crosses the line raises the alert
		e.raiseAlert(ctx, &alert.Alert{
			ID:       idgen.WithPrefix("alr_"),
			PersonID: personID,
			Kind:     alert.KindDailyLimitExceeded,
			Message: fmt.Sprintf("Daily limit exceeded on %s: %.3f units against a cap of %.3f",
				day, newTotal, e.limits.DailyUnitLimit),
			Severity:  alert.SeverityWarning,
			CreatedAt: time.Now().UTC(),
		})
	}
	return newTotal, nil
}

// raiseAlert stores and fans out an alert. Storage failures are logged,
// not propagated: alerting is never allowed to fail a purchase.
func (e *Engine) raiseAlert(ctx context.Context, a *alert.Alert) {
	if err := e.alerts.Create(ctx, a); err != nil {
		e.logger.Error("failed to store alert",
			"kind", string(a.Kind), "person_id", a.PersonID, "error", err)
		return
	}
	metrics.AlertsTotal.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	if e.emitter != nil {
		e.emitter.AlertRaised(a)
	}
}
