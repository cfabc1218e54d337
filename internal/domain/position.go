package domain

import (
	"math"
	"time"
)

type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// NoLiquidationDistance is reported as LiqDistancePct when a position has no
// liquidation price (fully collateralised or the exchange returned 0).
const NoLiquidationDistance = 999.0

// PositionSnapshot is a point-in-time view of one open position, already
// enriched with the account-relative risk figures the rules work on.
type PositionSnapshot struct {
	Symbol           string  `json:"symbol"`
	Side             Side    `json:"side"`
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	Leverage         int     `json:"leverage"`
	LiquidationPrice float64 `json:"liquidation_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	PositionValue    float64 `json:"position_value"`
	RiskPct          float64 `json:"risk_pct"`
	LiqDistancePct   float64 `json:"liq_distance_pct"`
	HasStopLoss      bool    `json:"has_stop_loss"`
}

// PositionParams are the raw exchange figures a snapshot is derived from.
type PositionParams struct {
	Symbol           string
	Side             Side
	Size             float64
	EntryPrice       float64
	MarkPrice        float64
	Leverage         int
	LiquidationPrice float64
	UnrealizedPnL    float64
	HasStopLoss      bool
}

// NewPositionSnapshot derives position value, risk and liquidation distance
// from the raw figures and the account balance.
func NewPositionSnapshot(p PositionParams, accountBalance float64) PositionSnapshot {
	value := math.Abs(p.Size) * p.MarkPrice
	return PositionSnapshot{
		Symbol:           p.Symbol,
		Side:             p.Side,
		Size:             math.Abs(p.Size),
		EntryPrice:       p.EntryPrice,
		MarkPrice:        p.MarkPrice,
		Leverage:         p.Leverage,
		LiquidationPrice: p.LiquidationPrice,
		UnrealizedPnL:    p.UnrealizedPnL,
		PositionValue:    value,
		RiskPct:          RiskPct(value, accountBalance),
		LiqDistancePct:   LiqDistancePct(p.MarkPrice, p.LiquidationPrice),
		HasStopLoss:      p.HasStopLoss,
	}
}

// RiskPct is the position value as a percentage of the account balance.
func RiskPct(positionValue, accountBalance float64) float64 {
	if accountBalance <= 0 {
		return 0
	}
	return positionValue / accountBalance * 100
}

// LiqDistancePct is how far the mark price is from liquidation, in percent of
// the mark price.
func LiqDistancePct(markPrice, liquidationPrice float64) float64 {
	if liquidationPrice <= 0 || markPrice <= 0 {
		return NoLiquidationDistance
	}
	return math.Abs(markPrice-liquidationPrice) / markPrice * 100
}

func (p PositionSnapshot) HasLiquidationPrice() bool {
	return p.LiquidationPrice > 0
}

// Validate reports the first field that makes the snapshot unusable.
func (p PositionSnapshot) Validate() error {
	bad := func(field, reason string) error {
		return &MalformedSnapshotError{Symbol: p.Symbol, Field: field, Reason: reason}
	}

	if p.Symbol == "" {
		return bad("symbol", "empty")
	}
	if p.Side != SideLong && p.Side != SideShort {
		return bad("side", "unknown side "+string(p.Side))
	}
	numbers := []struct {
		field string
		value float64
	}{
		{"size", p.Size},
		{"entry_price", p.EntryPrice},
		{"mark_price", p.MarkPrice},
		{"liquidation_price", p.LiquidationPrice},
		{"unrealized_pnl", p.UnrealizedPnL},
		{"risk_pct", p.RiskPct},
		{"liq_distance_pct", p.LiqDistancePct},
	}
	for _, n := range numbers {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return bad(n.field, "not a finite number")
		}
	}
	if p.Size < 0 {
		return bad("size", "negative")
	}
	if p.MarkPrice <= 0 {
		return bad("mark_price", "must be positive")
	}
	if p.EntryPrice < 0 {
		return bad("entry_price", "negative")
	}
	if p.LiquidationPrice < 0 {
		return bad("liquidation_price", "negative")
	}
	if p.Leverage < 1 {
		return bad("leverage", "must be at least 1")
	}
	if p.RiskPct < 0 {
		return bad("risk_pct", "negative")
	}
	if p.LiqDistancePct < 0 {
		return bad("liq_distance_pct", "negative")
	}
	return nil
}

// TradeRecord is one closed trade with its realised result.
type TradeRecord struct {
	Symbol        string    `json:"symbol"`
	RealizedPnL   float64   `json:"realized_pnl"`
	IsWin         bool      `json:"is_win"`
	ClosedAt      time.Time `json:"closed_at"`
	TransactionID string    `json:"transaction_id"`
}

func NewTradeRecord(symbol string, pnl float64, closedAt time.Time, txID string) TradeRecord {
	return TradeRecord{
		Symbol:        symbol,
		RealizedPnL:   pnl,
		IsWin:         pnl > 0,
		ClosedAt:      closedAt,
		TransactionID: txID,
	}
}
