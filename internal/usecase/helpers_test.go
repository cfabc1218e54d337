package usecase_test

import (
	"sync"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
)

var baseTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// safeLong is a long position that violates no rule under the defaults.
func safeLong(symbol string) domain.PositionSnapshot {
	return domain.PositionSnapshot{
		Symbol:           symbol,
		Side:             domain.SideLong,
		Size:             0.01,
		EntryPrice:       100,
		MarkPrice:        100,
		Leverage:         5,
		LiquidationPrice: 80,
		PositionValue:    1,
		RiskPct:          1,
		LiqDistancePct:   20,
		HasStopLoss:      true,
	}
}

func trade(pnl float64, closedAt time.Time) domain.TradeRecord {
	return domain.NewTradeRecord("BTCUSDT", pnl, closedAt, closedAt.Format(time.RFC3339Nano))
}
