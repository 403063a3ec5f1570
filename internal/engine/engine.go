// Package engine implements the risk scoring and pattern detection core.
//
// Every purchase flows through one workflow: identity lookup, blocked
// check, unit resolution, atomic daily-limit admission, persistence,
// then a best-effort rescore and detector sweep. The guard is the only
// step that can reject a sale; scoring and detection never do.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/config"
	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/incident"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
)

var (
	// ErrPersonBlocked rejects purchases for administratively blocked persons.
	ErrPersonBlocked = errors.New("person is blocked from purchasing")

	// ErrBadInput marks purchase inputs the engine cannot resolve into units.
	ErrBadInput = errors.New("invalid purchase input")
)

// LimitExceededError rejects a purchase that would push the person past
// the daily unit cap. The daily total is left untouched.
type LimitExceededError struct {
	CurrentUnits   float64
	Limit          float64
	AttemptedUnits float64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("daily unit limit exceeded: %.3f of %.3f used, attempted %.3f",
		e.CurrentUnits, e.Limit, e.AttemptedUnits)
}

// EventEmitter fans engine events out to live dashboard clients.
// Implementations must not block; the engine calls these inline.
type EventEmitter interface {
	PurchaseLogged(p *purchase.Purchase)
	AlertRaised(a *alert.Alert)
	PatternDetected(f *pattern.Finding)
	RiskChanged(personID string, previous, current person.Tier, score float64)
}

// Deps are the stores and collaborators the engine operates over.
type Deps struct {
	Persons   person.Store
	Purchases purchase.Store
	Totals    dailytotal.Store
	Incidents incident.Store
	Patterns  pattern.Store
	Alerts    alert.Store

	Emitter EventEmitter // optional
	Logger  *slog.Logger // optional, defaults to slog.Default()
}

// Engine evaluates purchases against the regulatory rules.
type Engine struct {
	persons   person.Store
	purchases purchase.Store
	totals    dailytotal.Store
	incidents incident.Store
	patterns  pattern.Store
	alerts    alert.Store

	limits  config.Limits
	emitter EventEmitter
	logger  *slog.Logger
}

// New creates an engine with the given limits and dependencies.
func New(limits config.Limits, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		persons:   deps.Persons,
		purchases: deps.Purchases,
		totals:    deps.Totals,
		incidents: deps.Incidents,
		patterns:  deps.Patterns,
		alerts:    deps.Alerts,
		limits:    limits,
		emitter:   deps.Emitter,
		logger:    logger,
	}
}

// Limits exposes the thresholds the engine was built with.
func (e *Engine) Limits() config.Limits { return e.limits }
