package domain

import "time"

// User is a monitored trader with exchange credentials and optional
// personal thresholds (0 means use the global value).
type User struct {
	ID                int64     `json:"id"`
	TelegramID        int64     `json:"telegram_id"`
	TelegramUsername  string    `json:"telegram_username,omitempty"`
	APIKey            string    `json:"-"`
	APISecret         string    `json:"-"`
	IsActive          bool      `json:"is_active"`
	MaxRiskPct        float64   `json:"max_risk_pct"`
	MinLiqDistancePct float64   `json:"min_liq_distance_pct"`
	CreatedAt         time.Time `json:"created_at"`
	LastSeen          time.Time `json:"last_seen"`
}
