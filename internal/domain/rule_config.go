package domain

import (
	"math"
	"time"

	"go.uber.org/multierr"
)

// DefaultCooldownSeconds applies to a rule with no configured cooldown.
const DefaultCooldownSeconds = 300

// RuleConfig holds the thresholds and cooldown windows the rules run with.
type RuleConfig struct {
	MaxRiskPct               float64          `yaml:"max_risk_pct" json:"max_risk_pct"`
	MinLiqDistancePct        float64          `yaml:"min_liq_distance_pct" json:"min_liq_distance_pct"`
	NoStopLossTimeoutMinutes int              `yaml:"no_sl_timeout_minutes" json:"no_sl_timeout_minutes"`
	RevengeWindowMinutes     int              `yaml:"revenge_window_minutes" json:"revenge_window_minutes"`
	CooldownSeconds          map[RuleType]int `yaml:"alert_cooldowns" json:"alert_cooldowns"`
}

func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		MaxRiskPct:               2.0,
		MinLiqDistancePct:        5.0,
		NoStopLossTimeoutMinutes: 3,
		RevengeWindowMinutes:     15,
		CooldownSeconds: map[RuleType]int{
			RuleHighRisk:   300,
			RuleLiqRisk:    180,
			RuleNoStopLoss: 600,
			RuleRevenge:    900,
		},
	}
}

// Validate returns every problem found, combined into one error.
func (c RuleConfig) Validate() error {
	var err error
	if math.IsNaN(c.MaxRiskPct) || c.MaxRiskPct <= 0 {
		err = multierr.Append(err, &ConfigError{Field: "max_risk_pct", Reason: "must be positive"})
	}
	if math.IsNaN(c.MinLiqDistancePct) || c.MinLiqDistancePct < 0 {
		err = multierr.Append(err, &ConfigError{Field: "min_liq_distance_pct", Reason: "must not be negative"})
	}
	if c.NoStopLossTimeoutMinutes < 0 {
		err = multierr.Append(err, &ConfigError{Field: "no_sl_timeout_minutes", Reason: "must not be negative"})
	}
	if c.RevengeWindowMinutes <= 0 {
		err = multierr.Append(err, &ConfigError{Field: "revenge_window_minutes", Reason: "must be positive"})
	}
	for rule, secs := range c.CooldownSeconds {
		if !rule.Valid() {
			err = multierr.Append(err, &ConfigError{Field: "alert_cooldowns." + string(rule), Reason: "unknown rule"})
			continue
		}
		if secs < 0 {
			err = multierr.Append(err, &ConfigError{Field: "alert_cooldowns." + string(rule), Reason: "must not be negative"})
		}
	}
	return err
}

// CooldownWindows resolves the window of every rule. A missing no_sl entry
// falls back to the no-stop-loss timeout, anything else to the default.
func (c RuleConfig) CooldownWindows() map[RuleType]time.Duration {
	windows := make(map[RuleType]time.Duration, len(AllRules))
	for _, rule := range AllRules {
		secs, ok := c.CooldownSeconds[rule]
		if !ok {
			secs = DefaultCooldownSeconds
			if rule == RuleNoStopLoss && c.NoStopLossTimeoutMinutes > 0 {
				secs = c.NoStopLossTimeoutMinutes * 60
			}
		}
		windows[rule] = time.Duration(secs) * time.Second
	}
	return windows
}

func (c RuleConfig) RevengeWindow() time.Duration {
	return time.Duration(c.RevengeWindowMinutes) * time.Minute
}

// WithUserLimits overrides the thresholds a user has customised.
func (c RuleConfig) WithUserLimits(u *User) RuleConfig {
	out := c
	out.CooldownSeconds = make(map[RuleType]int, len(c.CooldownSeconds))
	for k, v := range c.CooldownSeconds {
		out.CooldownSeconds[k] = v
	}
	if u == nil {
		return out
	}
	if u.MaxRiskPct > 0 {
		out.MaxRiskPct = u.MaxRiskPct
	}
	if u.MinLiqDistancePct > 0 {
		out.MinLiqDistancePct = u.MinLiqDistancePct
	}
	return out
}
