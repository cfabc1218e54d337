package domain

import (
	"encoding/json"
	"fmt"
)

type DetailsKind string

const (
	KindHighRisk      DetailsKind = "high_risk"
	KindLiqRisk       DetailsKind = "liq_risk"
	KindNoStopLoss    DetailsKind = "no_sl"
	KindQuickReentry  DetailsKind = "quick_reentry"
	KindHighFrequency DetailsKind = "high_frequency"
)

// AlertDetails carries the rule-specific figures of an alert. The set of
// implementations is closed: only the types in this file satisfy it.
type AlertDetails interface {
	Kind() DetailsKind
	RuleType() RuleType
	sealed()
}

type HighRiskDetails struct {
	RiskPct      float64 `json:"risk_pct"`
	MaxRiskPct   float64 `json:"max_risk_pct"`
	ReductionPct int     `json:"reduction_pct"`
}

type LiqRiskDetails struct {
	LiqDistancePct    float64 `json:"liq_distance_pct"`
	MinLiqDistancePct float64 `json:"min_liq_distance_pct"`
}

type NoStopLossDetails struct {
	SuggestedStopPrice float64 `json:"suggested_stop_price"`
	RiskPct            float64 `json:"risk_pct"`
}

// QuickReentryDetails: several losses in the revenge window and a new
// position opened right after the last one.
type QuickReentryDetails struct {
	RecentLosses         int `json:"recent_losses"`
	MinutesSinceLastLoss int `json:"minutes_since_last_loss"`
}

// HighFrequencyDetails: too many trades closed in a short timeframe.
type HighFrequencyDetails struct {
	TradeCount int    `json:"trade_count"`
	Timeframe  string `json:"timeframe"`
}

func (HighRiskDetails) Kind() DetailsKind      { return KindHighRisk }
func (LiqRiskDetails) Kind() DetailsKind       { return KindLiqRisk }
func (NoStopLossDetails) Kind() DetailsKind    { return KindNoStopLoss }
func (QuickReentryDetails) Kind() DetailsKind  { return KindQuickReentry }
func (HighFrequencyDetails) Kind() DetailsKind { return KindHighFrequency }

func (HighRiskDetails) RuleType() RuleType      { return RuleHighRisk }
func (LiqRiskDetails) RuleType() RuleType       { return RuleLiqRisk }
func (NoStopLossDetails) RuleType() RuleType    { return RuleNoStopLoss }
func (QuickReentryDetails) RuleType() RuleType  { return RuleRevenge }
func (HighFrequencyDetails) RuleType() RuleType { return RuleRevenge }

func (HighRiskDetails) sealed()      {}
func (LiqRiskDetails) sealed()       {}
func (NoStopLossDetails) sealed()    {}
func (QuickReentryDetails) sealed()  {}
func (HighFrequencyDetails) sealed() {}

// DecodeAlertDetails restores a details value persisted as JSON.
func DecodeAlertDetails(kind DetailsKind, data []byte) (AlertDetails, error) {
	var (
		d   AlertDetails
		err error
	)
	switch kind {
	case KindHighRisk:
		var v HighRiskDetails
		err = json.Unmarshal(data, &v)
		d = v
	case KindLiqRisk:
		var v LiqRiskDetails
		err = json.Unmarshal(data, &v)
		d = v
	case KindNoStopLoss:
		var v NoStopLossDetails
		err = json.Unmarshal(data, &v)
		d = v
	case KindQuickReentry:
		var v QuickReentryDetails
		err = json.Unmarshal(data, &v)
		d = v
	case KindHighFrequency:
		var v HighFrequencyDetails
		err = json.Unmarshal(data, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown alert details kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", kind, err)
	}
	return d, nil
}
