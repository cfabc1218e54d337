package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
)

func newRuleSet(t *testing.T) (*usecase.RuleSet, *fakeClock) {
	t.Helper()
	cfg := domain.DefaultRuleConfig()
	clock := newFakeClock(baseTime)
	cooldowns := usecase.NewCooldownTracker(cfg.CooldownWindows())
	factory := usecase.NewAlertFactory(cooldowns, clock)
	return usecase.NewRuleSet(cfg, cooldowns, factory, clock), clock
}

func TestSizeReductionPct(t *testing.T) {
	assert.Equal(t, 42, usecase.SizeReductionPct(3.5, 2.0))
	assert.Equal(t, 80, usecase.SizeReductionPct(10, 2))
	assert.Equal(t, 0, usecase.SizeReductionPct(2, 2))
}

func TestSuggestedStopPrice(t *testing.T) {
	assert.InDelta(t, 98.0, usecase.SuggestedStopPrice(domain.SideLong, 100, 2), 1e-9)
	assert.InDelta(t, 102.0, usecase.SuggestedStopPrice(domain.SideShort, 100, 2), 1e-9)
}

func TestRuleSet_HighRisk(t *testing.T) {
	rs, _ := newRuleSet(t)

	p := safeLong("BTCUSDT")
	p.RiskPct = 3.5
	alert, violated := rs.CheckHighRisk(p)
	require.True(t, violated)
	require.NotNil(t, alert)

	assert.Equal(t, domain.RuleHighRisk, alert.RuleType)
	assert.Equal(t, domain.SeverityWarning, alert.Severity)
	assert.Equal(t, "Risk 3.5% exceeds limit (2%)", alert.Message)
	assert.Equal(t, "Reduce size by ~42%", alert.Suggestion)
	assert.Equal(t, domain.HighRiskDetails{RiskPct: 3.5, MaxRiskPct: 2, ReductionPct: 42}, alert.Details)
	require.NotNil(t, alert.Position)
	assert.Equal(t, p, *alert.Position)

	p.RiskPct = 2.0
	alert, violated = rs.CheckHighRisk(p)
	assert.Nil(t, alert)
	assert.False(t, violated, "risk equal to the limit is not a violation")
}

func TestRuleSet_LiqRisk(t *testing.T) {
	rs, _ := newRuleSet(t)

	p := safeLong("ETHUSDT")
	p.MarkPrice = 100
	p.LiquidationPrice = 97
	p.LiqDistancePct = domain.LiqDistancePct(p.MarkPrice, p.LiquidationPrice)

	alert, violated := rs.CheckLiqRisk(p)
	require.True(t, violated)
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
	assert.Equal(t, "Liquidation 3.0% away (min safe: 5%)", alert.Message)
	assert.Equal(t, "Add margin or reduce leverage", alert.Suggestion)
}

func TestRuleSet_LiqRiskIgnoresMissingLiquidationPrice(t *testing.T) {
	rs, _ := newRuleSet(t)

	p := safeLong("ETHUSDT")
	p.LiquidationPrice = 0
	p.LiqDistancePct = domain.NoLiquidationDistance

	alert, violated := rs.CheckLiqRisk(p)
	assert.Nil(t, alert)
	assert.False(t, violated)
}

func TestRuleSet_NoStopLoss(t *testing.T) {
	tests := []struct {
		name       string
		side       domain.Side
		entry      float64
		wantStop   float64
		suggestion string
	}{
		{"long", domain.SideLong, 100, 98, "Set SL at $98.00 (~2% risk)"},
		{"short", domain.SideShort, 100, 102, "Set SL at $102.00 (~2% risk)"},
		{"thousands", domain.SideLong, 65000, 63700, "Set SL at $63,700.00 (~2% risk)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, _ := newRuleSet(t)
			p := safeLong("BTCUSDT")
			p.Side = tt.side
			p.EntryPrice = tt.entry
			p.RiskPct = 2
			p.HasStopLoss = false

			alert, violated := rs.CheckNoStopLoss(p)
			require.True(t, violated)
			require.NotNil(t, alert)

			d, ok := alert.Details.(domain.NoStopLossDetails)
			require.True(t, ok)
			assert.InDelta(t, tt.wantStop, d.SuggestedStopPrice, 1e-6)
			assert.Equal(t, tt.suggestion, alert.Suggestion)
		})
	}
}

func TestRuleSet_EvaluateReportsSuppressed(t *testing.T) {
	rs, clock := newRuleSet(t)

	p := safeLong("BTCUSDT")
	p.RiskPct = 3
	p.HasStopLoss = false

	alerts, suppressed := rs.Evaluate(p)
	assert.Len(t, alerts, 2)
	assert.Empty(t, suppressed)

	clock.Advance(1)
	alerts, suppressed = rs.Evaluate(p)
	assert.Empty(t, alerts)
	assert.Equal(t, []domain.RuleType{domain.RuleHighRisk, domain.RuleNoStopLoss}, suppressed)
}
