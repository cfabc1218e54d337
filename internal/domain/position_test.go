package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/risk_guard/internal/domain"
)

func TestLiqDistancePct(t *testing.T) {
	assert.InDelta(t, 5.0, domain.LiqDistancePct(100, 95), 1e-9)
	assert.InDelta(t, 5.0, domain.LiqDistancePct(100, 105), 1e-9)
	assert.Equal(t, domain.NoLiquidationDistance, domain.LiqDistancePct(100, 0))
}

func TestRiskPct(t *testing.T) {
	assert.InDelta(t, 3.5, domain.RiskPct(350, 10000), 1e-9)
	assert.Equal(t, 0.0, domain.RiskPct(350, 0))
}

func TestNewPositionSnapshot(t *testing.T) {
	snap := domain.NewPositionSnapshot(domain.PositionParams{
		Symbol:           "BTCUSDT",
		Side:             domain.SideShort,
		Size:             -0.5,
		EntryPrice:       60000,
		MarkPrice:        60000,
		Leverage:         10,
		LiquidationPrice: 63000,
	}, 100000)

	assert.Equal(t, 0.5, snap.Size)
	assert.InDelta(t, 30000, snap.PositionValue, 1e-9)
	assert.InDelta(t, 30, snap.RiskPct, 1e-9)
	assert.InDelta(t, 5, snap.LiqDistancePct, 1e-9)
	assert.True(t, snap.HasLiquidationPrice())
	require.NoError(t, snap.Validate())
}

func TestPositionSnapshot_Validate(t *testing.T) {
	valid := domain.PositionSnapshot{
		Symbol:         "ETHUSDT",
		Side:           domain.SideLong,
		Size:           1,
		EntryPrice:     3000,
		MarkPrice:      3000,
		Leverage:       5,
		LiqDistancePct: domain.NoLiquidationDistance,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		mut   func(p *domain.PositionSnapshot)
		field string
	}{
		{"empty symbol", func(p *domain.PositionSnapshot) { p.Symbol = "" }, "symbol"},
		{"bad side", func(p *domain.PositionSnapshot) { p.Side = "Both" }, "side"},
		{"nan mark", func(p *domain.PositionSnapshot) { p.MarkPrice = math.NaN() }, "mark_price"},
		{"zero mark", func(p *domain.PositionSnapshot) { p.MarkPrice = 0 }, "mark_price"},
		{"negative size", func(p *domain.PositionSnapshot) { p.Size = -1 }, "size"},
		{"zero leverage", func(p *domain.PositionSnapshot) { p.Leverage = 0 }, "leverage"},
		{"inf risk", func(p *domain.PositionSnapshot) { p.RiskPct = math.Inf(1) }, "risk_pct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mut(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedSnapshot))

			var mse *domain.MalformedSnapshotError
			require.True(t, errors.As(err, &mse))
			assert.Equal(t, tt.field, mse.Field)
		})
	}
}

func TestNewTradeRecord(t *testing.T) {
	assert.True(t, domain.NewTradeRecord("BTCUSDT", 12.5, fixedTime, "1").IsWin)
	assert.False(t, domain.NewTradeRecord("BTCUSDT", -3, fixedTime, "2").IsWin)
}
