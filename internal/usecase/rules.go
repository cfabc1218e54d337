package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitos/risk_guard/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.English)

// RuleSet evaluates the per-position rules.
type RuleSet struct {
	cfg       domain.RuleConfig
	cooldowns *CooldownTracker
	factory   *AlertFactory
	clock     Clock
}

func NewRuleSet(cfg domain.RuleConfig, cooldowns *CooldownTracker, factory *AlertFactory, clock Clock) *RuleSet {
	return &RuleSet{cfg: cfg, cooldowns: cooldowns, factory: factory, clock: clock}
}

// Evaluate runs every position rule against p, in catalog order.
func (r *RuleSet) Evaluate(p domain.PositionSnapshot) (alerts []*domain.Alert, suppressed []domain.RuleType) {
	checks := []struct {
		rule  domain.RuleType
		check func(domain.PositionSnapshot) (*domain.Alert, bool)
	}{
		{domain.RuleHighRisk, r.CheckHighRisk},
		{domain.RuleLiqRisk, r.CheckLiqRisk},
		{domain.RuleNoStopLoss, r.CheckNoStopLoss},
	}
	for _, c := range checks {
		alert, violated := c.check(p)
		switch {
		case alert != nil:
			alerts = append(alerts, alert)
		case violated:
			suppressed = append(suppressed, c.rule)
		}
	}
	return alerts, suppressed
}

// CheckHighRisk fires when the position is larger than the risk limit. The
// boolean reports whether the condition held, even if the alert was
// suppressed by cooldown.
func (r *RuleSet) CheckHighRisk(p domain.PositionSnapshot) (*domain.Alert, bool) {
	if p.RiskPct <= r.cfg.MaxRiskPct {
		return nil, false
	}
	if !r.cooldowns.ShouldFire(domain.RuleHighRisk, p.Symbol, r.clock.Now()) {
		return nil, true
	}

	reduction := SizeReductionPct(p.RiskPct, r.cfg.MaxRiskPct)
	return r.factory.Create(alertDraft{
		symbol:     p.Symbol,
		severity:   domain.SeverityWarning,
		message:    fmt.Sprintf("Risk %s%% exceeds limit (%s%%)", pct(p.RiskPct), pct(r.cfg.MaxRiskPct)),
		suggestion: fmt.Sprintf("Reduce size by ~%d%%", reduction),
		position:   &p,
		details: domain.HighRiskDetails{
			RiskPct:      p.RiskPct,
			MaxRiskPct:   r.cfg.MaxRiskPct,
			ReductionPct: reduction,
		},
	}), true
}

// CheckLiqRisk fires when the mark price is too close to liquidation.
// Positions without a liquidation price never fire.
func (r *RuleSet) CheckLiqRisk(p domain.PositionSnapshot) (*domain.Alert, bool) {
	if !p.HasLiquidationPrice() || p.LiqDistancePct >= r.cfg.MinLiqDistancePct {
		return nil, false
	}
	if !r.cooldowns.ShouldFire(domain.RuleLiqRisk, p.Symbol, r.clock.Now()) {
		return nil, true
	}

	return r.factory.Create(alertDraft{
		symbol:     p.Symbol,
		severity:   domain.SeverityCritical,
		message:    fmt.Sprintf("Liquidation %.1f%% away (min safe: %s%%)", p.LiqDistancePct, pct(r.cfg.MinLiqDistancePct)),
		suggestion: "Add margin or reduce leverage",
		position:   &p,
		details: domain.LiqRiskDetails{
			LiqDistancePct:    p.LiqDistancePct,
			MinLiqDistancePct: r.cfg.MinLiqDistancePct,
		},
	}), true
}

// CheckNoStopLoss fires for positions without a protective stop.
func (r *RuleSet) CheckNoStopLoss(p domain.PositionSnapshot) (*domain.Alert, bool) {
	if p.HasStopLoss {
		return nil, false
	}
	if !r.cooldowns.ShouldFire(domain.RuleNoStopLoss, p.Symbol, r.clock.Now()) {
		return nil, true
	}

	stop := SuggestedStopPrice(p.Side, p.EntryPrice, p.RiskPct)
	return r.factory.Create(alertDraft{
		symbol:     p.Symbol,
		severity:   domain.SeverityWarning,
		message:    "No stop loss detected",
		suggestion: pricePrinter.Sprintf("Set SL at $%.2f (~%s%% risk)", stop, pct(p.RiskPct)),
		position:   &p,
		details: domain.NoStopLossDetails{
			SuggestedStopPrice: stop,
			RiskPct:            p.RiskPct,
		},
	}), true
}

// SizeReductionPct is the share of the position to cut, truncated to a
// whole percent, to bring risk back to the limit.
func SizeReductionPct(riskPct, maxRiskPct float64) int {
	if riskPct <= 0 || riskPct <= maxRiskPct {
		return 0
	}
	return int((riskPct - maxRiskPct) / riskPct * 100)
}

// SuggestedStopPrice places the stop riskPct percent away from entry on the
// losing side.
func SuggestedStopPrice(side domain.Side, entryPrice, riskPct float64) float64 {
	if side == domain.SideShort {
		return entryPrice * (1 + riskPct/100)
	}
	return entryPrice * (1 - riskPct/100)
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
