package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/incident"
	"github.com/safeguardhq/safeguard/internal/metrics"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
	"github.com/safeguardhq/safeguard/internal/traces"
)

// Factor is one scored contribution with its human-readable reason.
type Factor struct {
	Description string  `json:"description"`
	Points      float64 `json:"points"`
}

// ScoreResult is a full risk evaluation for one person.
type ScoreResult struct {
	PersonID     string      `json:"personId"`
	Score        float64     `json:"score"` // [0, 100]
	Tier         person.Tier `json:"tier"`
	PreviousTier person.Tier `json:"previousTier"`
	Factors      []Factor    `json:"factors"`
	EvaluatedAt  time.Time   `json:"evaluatedAt"`
}

const (
	maxScore          = 100.0
	maxIncidentPoints = 30.0
	maxFlagPoints     = 20.0
)

// Score recomputes a person's risk from scratch: recent purchase
// behavior, incident history, unreviewed pattern flags, and limit
// violations. The stored score and tier are overwritten; a tier change
// raises a RiskLevelChange alert graded by the new tier.
func (e *Engine) Score(ctx context.Context, personID string) (*ScoreResult, error) {
	ctx, span := traces.StartSpan(ctx, "engine.Score", traces.PersonID(personID))
	defer span.End()

	timer := time.Now()
	defer func() { metrics.RiskScoreDuration.Observe(time.Since(timer).Seconds()) }()

	p, err := e.persons.Get(ctx, personID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var factors []Factor

	// Purchase behavior over the trailing 30 days
	recent, err := e.purchases.ListByPerson(ctx, personID, purchase.Range{From: now.AddDate(0, 0, -30)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent purchases: %w", err)
	}

	frequency := len(recent)
	var units30, earlyMorning, lateNight float64
	for _, pur := range recent {
		units30 += pur.Units
		hour := pur.Timestamp.Hour()
		if hour < 10 {
			earlyMorning++
		}
		if hour >= 22 {
			lateNight++
		}
	}

	switch {
	case frequency > e.limits.HighFrequencyThreshold:
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Very high purchase frequency: %d purchases in 30 days", frequency),
			Points:      25,
		})
	case frequency > 10:
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Elevated purchase frequency: %d purchases in 30 days", frequency),
			Points:      15,
		})
	}

	switch {
	case units30 > 100:
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Very high consumption: %.1f units in 30 days", units30),
			Points:      25,
		})
	case units30 > 50:
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Elevated consumption: %.1f units in 30 days", units30),
			Points:      15,
		})
	}

	if earlyMorning > 5 {
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Frequent early-morning purchases: %.0f in 30 days", earlyMorning),
			Points:      10,
		})
	}
	if lateNight > 5 {
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Frequent late-night purchases: %.0f in 30 days", lateNight),
			Points:      5,
		})
	}

	// Incident history (all time), weighted by severity, capped
	incidents, err := e.incidents.ListByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents: %w", err)
	}
	if len(incidents) > 0 {
		points := 0.0
		for _, inc := range incidents {
			switch inc.Severity {
			case incident.SeverityHigh:
				points += 15
			case incident.SeverityMedium:
				points += 10
			default:
				points += 5
			}
		}
		if points > maxIncidentPoints {
			points = maxIncidentPoints
		}
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Incident history: %d reported incidents", len(incidents)),
			Points:      points,
		})
	}

	// Unreviewed pattern flags
	flags, err := e.patterns.ListUnreviewedByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern flags: %w", err)
	}
	if len(flags) > 0 {
		high := 0
		for _, f := range flags {
			if f.Confidence > 0.7 {
				high++
			}
		}
		points := float64(10*high + 3*len(flags))
		if points > maxFlagPoints {
			points = maxFlagPoints
		}
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Unreviewed pattern flags: %d (%d high confidence)", len(flags), high),
			Points:      points,
		})
	}

	// Daily limit violations (all time)
	violations, err := e.totals.CountViolations(ctx, personID, e.limits.DailyUnitLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to count limit violations: %w", err)
	}
	switch {
	case violations > 5:
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Repeated daily limit violations: %d days over the cap", violations),
			Points:      15,
		})
	case violations > 0:
		factors = append(factors, Factor{
			Description: fmt.Sprintf("Daily limit violations: %d days over the cap", violations),
			Points:      10,
		})
	}

	score := 0.0
	for _, f := range factors {
		score += f.Points
	}
	if score > maxScore {
		score = maxScore
	}

	tier := person.TierForScore(score, e.limits.YellowThreshold, e.limits.RedThreshold)
	span.SetAttributes(traces.RiskTier(string(tier)))

	// Capture the previous tier before overwriting it, so the change
	// alert compares against the pre-rescore state.
	previous := p.RiskTier
	if err := e.persons.UpdateRisk(ctx, personID, score, tier); err != nil {
		return nil, fmt.Errorf("failed to store risk score: %w", err)
	}
	e.updateTierGauge(ctx)

	if previous != tier {
		severity := alert.SeverityWarning
		if tier == person.TierRed {
			severity = alert.SeverityCritical
		}
		e.raiseAlert(ctx, &alert.Alert{
			ID:       idgen.WithPrefix("alr_"),
			PersonID: personID,
			Kind:     alert.KindRiskLevelChange,
			Message: fmt.Sprintf("Risk level changed from %s to %s (score %.0f)",
				previous, tier, score),
			Severity:  severity,
			CreatedAt: time.Now().UTC(),
		})
		if e.emitter != nil {
			e.emitter.RiskChanged(personID, previous, tier, score)
		}
		e.logger.Info("risk level changed",
			"person_id", personID, "previous", string(previous), "tier", string(tier), "score", score)
	}

	return &ScoreResult{
		PersonID:     personID,
		Score:        score,
		Tier:         tier,
		PreviousTier: previous,
		Factors:      factors,
		EvaluatedAt:  now,
	}, nil
}

func (e *Engine) updateTierGauge(ctx context.Context) {
	counts, err := e.persons.CountByTier(ctx)
	if err != nil {
		return
	}
	for _, tier := range []person.Tier{person.TierGreen, person.TierYellow, person.TierRed} {
		metrics.PersonsByTier.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
}
