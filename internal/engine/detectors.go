package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/idgen"
	"github.com/safeguardhq/safeguard/internal/metrics"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/purchase"
	"github.com/safeguardhq/safeguard/internal/traces"
)

// Detection identifies a detector hit returned to the caller.
type Detection struct {
	Kind       pattern.Kind `json:"kind"`
	Confidence float64      `json:"confidence"`
}

// RunDetectors sweeps a person's recent purchases through every pattern
// detector. Each hit is persisted as an unreviewed finding unless an
// unreviewed finding of the same kind already exists; detectors are
// silent when nothing fires.
func (e *Engine) RunDetectors(ctx context.Context, personID string) ([]Detection, error) {
	ctx, span := traces.StartSpan(ctx, "engine.RunDetectors", traces.PersonID(personID))
	defer span.End()

	existing, err := e.patterns.ListUnreviewedByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open findings: %w", err)
	}
	open := make(map[pattern.Kind]bool, len(existing))
	for _, f := range existing {
		open[f.Kind] = true
	}

	var detections []Detection

	bulk, err := e.detectBulkBuying(ctx, personID)
	if err != nil {
		return nil, err
	}
	if bulk != nil {
		detections = append(detections, Detection{Kind: bulk.Kind, Confidence: bulk.Confidence})
		if !open[bulk.Kind] {
			if err := e.storeFinding(ctx, bulk); err != nil {
				return detections, err
			}
		}
	}

	unusual, err := e.detectUnusualTime(ctx, personID)
	if err != nil {
		return detections, err
	}
	if unusual != nil {
		detections = append(detections, Detection{Kind: unusual.Kind, Confidence: unusual.Confidence})
		if !open[unusual.Kind] {
			if err := e.storeFinding(ctx, unusual); err != nil {
				return detections, err
			}
		}
	}

	return detections, nil
}

// detectBulkBuying flags 3 or more large-volume purchases within 7 days.
func (e *Engine) detectBulkBuying(ctx context.Context, personID string) (*pattern.Finding, error) {
	since := time.Now().UTC().AddDate(0, 0, -7)
	recent, err := e.purchases.ListByPerson(ctx, personID, purchase.Range{From: since}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases for bulk detection: %w", err)
	}

	count := 0
	totalVolume := 0
	for _, p := range recent {
		if p.VolumeML > e.limits.BulkThresholdML {
			count++
			totalVolume += p.VolumeML
		}
	}
	if count < 3 {
		return nil, nil
	}

	confidence := float64(count) / 5.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &pattern.Finding{
		ID:         idgen.WithPrefix("flag_"),
		PersonID:   personID,
		Kind:       pattern.KindBulkBuying,
		DetectedAt: time.Now().UTC(),
		Confidence: confidence,
		Evidence: map[string]any{
			"count":       count,
			"totalVolume": totalVolume,
			"windowDays":  7,
		},
	}, nil
}

// detectUnusualTime flags more than 7 early-morning or late-night
// purchases within 30 days.
func (e *Engine) detectUnusualTime(ctx context.Context, personID string) (*pattern.Finding, error) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	recent, err := e.purchases.ListByPerson(ctx, personID, purchase.Range{From: since}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases for time detection: %w", err)
	}

	morning := 0
	lateNight := 0
	for _, p := range recent {
		hour := p.Timestamp.Hour()
		if hour >= 5 && hour < 10 {
			morning++
		}
		if hour >= 23 || hour < 5 {
			lateNight++
		}
	}
	if morning <= 7 && lateNight <= 7 {
		return nil, nil
	}

	return &pattern.Finding{
		ID:         idgen.WithPrefix("flag_"),
		PersonID:   personID,
		Kind:       pattern.KindUnusualTime,
		DetectedAt: time.Now().UTC(),
		Confidence: 0.7,
		Evidence: map[string]any{
			"morningCount":   morning,
			"lateNightCount": lateNight,
			"windowDays":     30,
		},
	}, nil
}

func (e *Engine) storeFinding(ctx context.Context, f *pattern.Finding) error {
	if err := e.patterns.Create(ctx, f); err != nil {
		return fmt.Errorf("failed to store pattern finding: %w", err)
	}
	metrics.PatternFindingsTotal.WithLabelValues(string(f.Kind)).Inc()
	e.logger.Info("pattern detected",
		"person_id", f.PersonID, "kind", string(f.Kind), "confidence", f.Confidence)

	e.raiseAlert(ctx, &alert.Alert{
		ID:       idgen.WithPrefix("alr_"),
		PersonID: f.PersonID,
		Kind:     alert.KindPatternDetected,
		Message: fmt.Sprintf("Pattern detected: %s (confidence %.2f)",
			f.Kind, f.Confidence),
		Severity:  alert.SeverityWarning,
		CreatedAt: time.Now().UTC(),
	})
	if e.emitter != nil {
		e.emitter.PatternDetected(f)
	}
	return nil
}
