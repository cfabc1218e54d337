package usecase

import (
	"fmt"

	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EvaluationResult is the outcome of evaluating a batch of snapshots.
type EvaluationResult struct {
	Alerts     []*domain.Alert
	Suppressed []domain.RuleType
	Failures   []error
}

// Err combines the per-snapshot failures, nil when there were none.
func (r EvaluationResult) Err() error {
	return multierr.Combine(r.Failures...)
}

// RuleEngine evaluates one trader's positions and trades. It keeps the
// cooldown state between calls and is safe for concurrent use.
type RuleEngine struct {
	cfg       domain.RuleConfig
	clock     Clock
	cooldowns *CooldownTracker
	factory   *AlertFactory
	rules     *RuleSet
	revenge   *RevengeDetector
	logger    *zap.Logger
}

func NewRuleEngine(cfg domain.RuleConfig, clock Clock, logger *zap.Logger) (*RuleEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cooldowns := NewCooldownTracker(cfg.CooldownWindows())
	factory := NewAlertFactory(cooldowns, clock)
	return &RuleEngine{
		cfg:       cfg,
		clock:     clock,
		cooldowns: cooldowns,
		factory:   factory,
		rules:     NewRuleSet(cfg, cooldowns, factory, clock),
		revenge:   NewRevengeDetector(cfg.RevengeWindow()),
		logger:    logger,
	}, nil
}

func (e *RuleEngine) Config() domain.RuleConfig { return e.cfg }

func (e *RuleEngine) Cooldowns() *CooldownTracker { return e.cooldowns }

// EvaluatePosition runs the position rules against one snapshot.
func (e *RuleEngine) EvaluatePosition(p domain.PositionSnapshot) ([]*domain.Alert, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	alerts, _ := e.rules.Evaluate(p)
	return alerts, nil
}

// EvaluatePositions evaluates every snapshot. A malformed snapshot is
// reported in Failures and the rest are still evaluated.
func (e *RuleEngine) EvaluatePositions(positions []domain.PositionSnapshot) EvaluationResult {
	var res EvaluationResult
	for i, p := range positions {
		if err := p.Validate(); err != nil {
			e.logger.Warn("Skipping malformed snapshot",
				zap.Int("index", i),
				zap.String("symbol", p.Symbol),
				zap.Error(err),
			)
			res.Failures = append(res.Failures, fmt.Errorf("position %d: %w", i, err))
			continue
		}

		alerts, suppressed := e.rules.Evaluate(p)
		for _, rule := range suppressed {
			e.logger.Debug("Alert suppressed by cooldown",
				zap.String("rule", string(rule)),
				zap.String("symbol", p.Symbol),
			)
		}
		res.Alerts = append(res.Alerts, alerts...)
		res.Suppressed = append(res.Suppressed, suppressed...)
	}
	return res
}

// CheckRevengePattern inspects recent trades (most recent first) and
// returns a revenge alert, rate limited under the SYSTEM symbol. The
// boolean reports a pattern that was suppressed by cooldown.
func (e *RuleEngine) CheckRevengePattern(trades []domain.TradeRecord, openPositions int) (*domain.Alert, bool) {
	now := e.clock.Now()
	details := e.revenge.Detect(trades, openPositions > 0, now)
	if details == nil {
		return nil, false
	}
	if !e.cooldowns.ShouldFire(domain.RuleRevenge, domain.SystemSymbol, now) {
		return nil, true
	}

	draft := alertDraft{
		symbol:   domain.SystemSymbol,
		severity: domain.Rules[domain.RuleRevenge].Severity,
		details:  details,
	}
	switch d := details.(type) {
	case domain.QuickReentryDetails:
		draft.message = fmt.Sprintf("Quick re-entry after losses (%d losses, last %dm ago)", d.RecentLosses, d.MinutesSinceLastLoss)
		draft.suggestion = "Take a 30-minute break before the next trade"
	case domain.HighFrequencyDetails:
		draft.message = fmt.Sprintf("High frequency trading (%d trades in %s)", d.TradeCount, d.Timeframe)
		draft.suggestion = "Slow down. Overtrading erodes your edge"
	}

	alert := e.factory.Create(draft)
	return alert, alert == nil
}

// Score computes the discipline score and its tier.
func (e *RuleEngine) Score(in domain.DisciplineScoreInputs) (float64, domain.ScoreTier) {
	s := CalculateDisciplineScore(in)
	return s, ScoreTierFor(s)
}
