package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type RuleType string

const (
	RuleHighRisk   RuleType = "high_risk"
	RuleLiqRisk    RuleType = "liq_risk"
	RuleNoStopLoss RuleType = "no_sl"
	RuleRevenge    RuleType = "revenge"
)

// AllRules lists the rule types in display order.
var AllRules = []RuleType{RuleHighRisk, RuleLiqRisk, RuleNoStopLoss, RuleRevenge}

func (r RuleType) Valid() bool {
	_, ok := Rules[r]
	return ok
}

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SystemSymbol is used for alerts that are not tied to a single position.
const SystemSymbol = "SYSTEM"

// Alert is an emitted rule violation. It is not modified after creation.
type Alert struct {
	ID          string            `json:"alert_id"`
	RuleType    RuleType          `json:"rule_type"`
	Severity    Severity          `json:"severity"`
	Symbol      string            `json:"symbol"`
	Message     string            `json:"message"`
	Suggestion  string            `json:"suggestion"`
	Position    *PositionSnapshot `json:"position,omitempty"`
	Details     AlertDetails      `json:"-"`
	TriggeredAt time.Time         `json:"triggered_at"`
}

// AlertID builds the identifier for an alert of the given rule and symbol.
func AlertID(rule RuleType, symbol string, at time.Time) string {
	return fmt.Sprintf("alert_%s_%s_%s", at.UTC().Format("20060102_150405"), rule, symbol)
}

func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	out := struct {
		plain
		DetailsKind DetailsKind  `json:"details_kind,omitempty"`
		Details     AlertDetails `json:"details,omitempty"`
	}{plain: plain(a), Details: a.Details}
	if a.Details != nil {
		out.DetailsKind = a.Details.Kind()
	}
	return json.Marshal(out)
}

// StoredAlert is an alert as persisted for one user.
type StoredAlert struct {
	RowID             int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	Alert             Alert      `json:"alert"`
	Acknowledged      bool       `json:"acknowledged"`
	AcknowledgedAt    *time.Time `json:"acknowledged_at,omitempty"`
	TelegramMessageID int        `json:"telegram_message_id,omitempty"`
}

// RuleInfo is the presentation metadata of a rule.
type RuleInfo struct {
	Name            string
	Emoji           string
	Severity        Severity
	Buttons         []ActionType
	FocusSuggestion string
}

var Rules = map[RuleType]RuleInfo{
	RuleHighRisk: {
		Name:            "High Risk Alert",
		Emoji:           "⚠️",
		Severity:        SeverityWarning,
		Buttons:         []ActionType{ActionAck, ActionReduce, ActionCooldown},
		FocusSuggestion: "Size your positions more conservatively",
	},
	RuleLiqRisk: {
		Name:            "Liquidation Risk",
		Emoji:           "🔴",
		Severity:        SeverityCritical,
		Buttons:         []ActionType{ActionAck, ActionAddMargin, ActionReduce},
		FocusSuggestion: "Use lower leverage to stay safe",
	},
	RuleNoStopLoss: {
		Name:            "No Stop Loss",
		Emoji:           "🛡️",
		Severity:        SeverityWarning,
		Buttons:         []ActionType{ActionAck, ActionSetSL, ActionCooldown},
		FocusSuggestion: "Always set stop loss immediately",
	},
	RuleRevenge: {
		Name:            "Revenge Pattern",
		Emoji:           "🧠",
		Severity:        SeverityWarning,
		Buttons:         []ActionType{ActionAck, ActionCooldown, ActionViewStats},
		FocusSuggestion: "Take breaks between trades",
	},
}
