package domain

import "time"

type ActionType string

const (
	ActionAck       ActionType = "ack"
	ActionCooldown  ActionType = "cooldown"
	ActionReduce    ActionType = "reduce"
	ActionSetSL     ActionType = "set_sl"
	ActionAddMargin ActionType = "add_margin"
	ActionViewStats ActionType = "view_stats"
)

type ActionInfo struct {
	Label       string
	ScoreImpact int
	Response    string
}

var Actions = map[ActionType]ActionInfo{
	ActionAck:       {Label: "✅ Acknowledge", ScoreImpact: 0, Response: "✅ Acknowledged"},
	ActionCooldown:  {Label: "🧊 Cooldown 30m", ScoreImpact: 5, Response: "🧊 Great decision! Taking a 30-minute break."},
	ActionReduce:    {Label: "📉 Reduce size", ScoreImpact: 3, Response: "📉 Smart move! Committing to reduce risk."},
	ActionSetSL:     {Label: "🛡️ Setting SL", ScoreImpact: 5, Response: "🛡️ Excellent! Setting stop loss is key."},
	ActionAddMargin: {Label: "💰 Adding margin", ScoreImpact: 3, Response: "💰 Good call! Adding margin for safety."},
	ActionViewStats: {Label: "📊 Show stats", ScoreImpact: 0, Response: "📊 Opening stats..."},
}

func (a ActionType) Valid() bool {
	_, ok := Actions[a]
	return ok
}

// ButtonClick is a user's response to an alert button.
type ButtonClick struct {
	UserID      int64
	AlertRowID  int64
	Action      ActionType
	ScoreImpact int
	ClickedAt   time.Time
}
