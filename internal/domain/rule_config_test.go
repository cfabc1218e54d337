package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/multierr"
)

var fixedTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func TestRuleConfig_DefaultsAreValid(t *testing.T) {
	cfg := domain.DefaultRuleConfig()
	require.NoError(t, cfg.Validate())

	w := cfg.CooldownWindows()
	assert.Equal(t, 5*time.Minute, w[domain.RuleHighRisk])
	assert.Equal(t, 3*time.Minute, w[domain.RuleLiqRisk])
	assert.Equal(t, 10*time.Minute, w[domain.RuleNoStopLoss])
	assert.Equal(t, 15*time.Minute, w[domain.RuleRevenge])
	assert.Equal(t, 15*time.Minute, cfg.RevengeWindow())
}

func TestRuleConfig_ValidateCollectsAllProblems(t *testing.T) {
	cfg := domain.DefaultRuleConfig()
	cfg.MaxRiskPct = 0
	cfg.RevengeWindowMinutes = -1
	cfg.CooldownSeconds[domain.RuleLiqRisk] = -10
	cfg.CooldownSeconds["martingale"] = 60

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
	assert.Len(t, multierr.Errors(err), 4)
}

func TestRuleConfig_MissingCooldowns(t *testing.T) {
	cfg := domain.DefaultRuleConfig()
	cfg.CooldownSeconds = map[domain.RuleType]int{domain.RuleHighRisk: 60}

	w := cfg.CooldownWindows()
	assert.Equal(t, time.Minute, w[domain.RuleHighRisk])
	assert.Equal(t, 300*time.Second, w[domain.RuleLiqRisk])
	assert.Equal(t, 3*time.Minute, w[domain.RuleNoStopLoss])
}

func TestRuleConfig_WithUserLimits(t *testing.T) {
	cfg := domain.DefaultRuleConfig()
	out := cfg.WithUserLimits(&domain.User{MaxRiskPct: 1.5})

	assert.Equal(t, 1.5, out.MaxRiskPct)
	assert.Equal(t, cfg.MinLiqDistancePct, out.MinLiqDistancePct)

	out.CooldownSeconds[domain.RuleHighRisk] = 1
	assert.Equal(t, 300, cfg.CooldownSeconds[domain.RuleHighRisk])
}
