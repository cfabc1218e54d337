package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
	"go.uber.org/zap"
)

func seedAlert(t *testing.T, alerts *memAlerts, userID int64, rule domain.RuleType, at time.Time) int64 {
	t.Helper()
	id, err := alerts.SaveAlert(context.Background(), userID, &domain.Alert{
		ID:          domain.AlertID(rule, "BTCUSDT", at),
		RuleType:    rule,
		Symbol:      "BTCUSDT",
		TriggeredAt: at,
	})
	require.NoError(t, err)
	return id
}

func TestActionService_HandleAction(t *testing.T) {
	ctx := context.Background()
	users := &memUsers{}
	alerts := &memAlerts{}
	clock := newFakeClock(baseTime)
	svc := usecase.NewActionService(users, alerts, clock, zap.NewNop())

	owner := &domain.User{TelegramID: 42, IsActive: true}
	other := &domain.User{TelegramID: 43, IsActive: true}
	require.NoError(t, users.SaveUser(ctx, owner))
	require.NoError(t, users.SaveUser(ctx, other))
	rowID := seedAlert(t, alerts, owner.ID, domain.RuleNoStopLoss, baseTime)

	res, err := svc.HandleAction(ctx, 42, rowID, domain.ActionSetSL)
	require.NoError(t, err)
	assert.Equal(t, 5, res.ScoreImpact)
	assert.Equal(t, "🛡️ Excellent! Setting stop loss is key. (+5 points)", res.Response)
	assert.True(t, res.Alert.Acknowledged)

	clock.Advance(time.Minute)
	res, err = svc.HandleAction(ctx, 42, rowID, domain.ActionAck)
	require.NoError(t, err)
	assert.Equal(t, "✅ Acknowledged", res.Response)

	stored, err := alerts.GetAlert(ctx, rowID)
	require.NoError(t, err)
	assert.Equal(t, baseTime, *stored.AcknowledgedAt, "acknowledgement time is kept from the first click")
	assert.Len(t, alerts.clicks, 2)

	in, err := alerts.CountScoreInputs(ctx, owner.ID, baseTime.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.DisciplineScoreInputs{TotalAlerts: 1, AcknowledgedAlerts: 1, PositiveActions: 1}, in)
}

func TestActionService_Rejections(t *testing.T) {
	ctx := context.Background()
	users := &memUsers{}
	alerts := &memAlerts{}
	svc := usecase.NewActionService(users, alerts, newFakeClock(baseTime), zap.NewNop())

	owner := &domain.User{TelegramID: 42}
	intruder := &domain.User{TelegramID: 99}
	require.NoError(t, users.SaveUser(ctx, owner))
	require.NoError(t, users.SaveUser(ctx, intruder))
	rowID := seedAlert(t, alerts, owner.ID, domain.RuleHighRisk, baseTime)

	_, err := svc.HandleAction(ctx, 42, rowID, "martingale")
	assert.ErrorIs(t, err, domain.ErrUnknownAction)

	_, err = svc.HandleAction(ctx, 99, rowID, domain.ActionAck)
	assert.ErrorIs(t, err, domain.ErrAlertNotOwned)

	_, err = svc.HandleAction(ctx, 7, rowID, domain.ActionAck)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.HandleAction(ctx, 42, 999, domain.ActionAck)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, alerts.clicks)
}
