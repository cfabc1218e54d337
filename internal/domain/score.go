package domain

import "time"

// ScoreWindow is the look-back used to collect discipline score inputs.
const ScoreWindow = 7 * 24 * time.Hour

type DisciplineScoreInputs struct {
	TotalAlerts        int `json:"total_alerts"`
	AcknowledgedAlerts int `json:"acknowledged_alerts"`
	PositiveActions    int `json:"positive_actions"`
}

type ScoreTier struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Badge  string  `json:"badge"`
	Emoji  string  `json:"emoji"`
	Status string  `json:"status"`
}

// ScoreTiers are ordered from the highest band down.
var ScoreTiers = []ScoreTier{
	{Min: 90, Max: 100, Badge: "Diamond", Emoji: "🏆", Status: "Excellent"},
	{Min: 75, Max: 89, Badge: "Platinum", Emoji: "💎", Status: "Good"},
	{Min: 60, Max: 74, Badge: "Silver", Emoji: "🥈", Status: "Careful"},
	{Min: 40, Max: 59, Badge: "Bronze", Emoji: "🥉", Status: "Warning"},
	{Min: 0, Max: 39, Badge: "Alert", Emoji: "⚠️", Status: "Critical"},
}

type DisciplineScore struct {
	UserID   int64                 `json:"user_id"`
	Score    float64               `json:"score"`
	Tier     ScoreTier             `json:"tier"`
	Inputs   DisciplineScoreInputs `json:"inputs"`
	Computed time.Time             `json:"computed_at"`
}

// RuleCount is how often a rule fired in some period.
type RuleCount struct {
	Rule  RuleType `json:"rule_type"`
	Count int      `json:"count"`
}

// DailyRecap is the end-of-day summary sent to a user.
type DailyRecap struct {
	Date            string      `json:"date"`
	TotalAlerts     int         `json:"total_alerts"`
	Acknowledged    int         `json:"acknowledged"`
	TopViolations   []RuleCount `json:"top_violations"`
	Score           float64     `json:"score"`
	Tier            ScoreTier   `json:"tier"`
	FocusSuggestion string      `json:"focus_suggestion"`
}
