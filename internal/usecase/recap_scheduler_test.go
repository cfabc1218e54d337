package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
	"go.uber.org/zap"
)

func stored(rule domain.RuleType, acked bool) *domain.StoredAlert {
	return &domain.StoredAlert{Alert: domain.Alert{RuleType: rule}, Acknowledged: acked}
}

func TestBuildDailyRecap(t *testing.T) {
	alerts := []*domain.StoredAlert{
		stored(domain.RuleNoStopLoss, true),
		stored(domain.RuleNoStopLoss, false),
		stored(domain.RuleNoStopLoss, false),
		stored(domain.RuleHighRisk, true),
		stored(domain.RuleRevenge, false),
		stored(domain.RuleRevenge, false),
		stored(domain.RuleLiqRisk, false),
	}

	recap := usecase.BuildDailyRecap(baseTime, alerts, 80)

	assert.Equal(t, "Saturday, March 14, 2026", recap.Date)
	assert.Equal(t, 7, recap.TotalAlerts)
	assert.Equal(t, 2, recap.Acknowledged)
	assert.Equal(t, []domain.RuleCount{
		{Rule: domain.RuleNoStopLoss, Count: 3},
		{Rule: domain.RuleRevenge, Count: 2},
		{Rule: domain.RuleHighRisk, Count: 1},
	}, recap.TopViolations)
	assert.Equal(t, "Always set stop loss immediately", recap.FocusSuggestion)
	assert.Equal(t, "Platinum", recap.Tier.Badge)
}

func TestBuildDailyRecap_CleanDay(t *testing.T) {
	recap := usecase.BuildDailyRecap(baseTime, nil, 100)
	assert.Empty(t, recap.TopViolations)
	assert.Equal(t, 0, recap.TotalAlerts)
	assert.Contains(t, recap.FocusSuggestion, "excellent discipline")
}

func TestRecapScheduler_SendsOncePerDay(t *testing.T) {
	ctx := context.Background()
	users := &memUsers{}
	alerts := &memAlerts{}
	notifier := &recordingNotifier{}
	clock := newFakeClock(time.Date(2026, 3, 14, 19, 59, 0, 0, time.UTC))

	alice := &domain.User{TelegramID: 1, IsActive: true}
	bob := &domain.User{TelegramID: 2, IsActive: true}
	require.NoError(t, users.SaveUser(ctx, alice))
	require.NoError(t, users.SaveUser(ctx, bob))
	notifier.failOn = map[int64]bool{bob.ID: true}

	seedAlert(t, alerts, alice.ID, domain.RuleHighRisk, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	seedAlert(t, alerts, alice.ID, domain.RuleHighRisk, time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC))

	scores := usecase.NewScoreService(alerts, clock, zap.NewNop())
	sched := usecase.NewRecapScheduler(users, alerts, scores, notifier, clock, 20, zap.NewNop())

	assert.Equal(t, 0, sched.Tick(ctx), "not due before 20:00")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, sched.Tick(ctx), "bob's failure must not block alice")
	require.Contains(t, notifier.recaps, alice.ID)
	assert.Equal(t, 1, notifier.recaps[alice.ID].TotalAlerts)
	assert.Equal(t, 90.0, notifier.recaps[alice.ID].Score)

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, sched.Tick(ctx), "already sent today")

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 1, sched.Tick(ctx))
}

func TestRecapScheduler_RetriesAfterListFailure(t *testing.T) {
	ctx := context.Background()
	users := &memUsers{}
	alerts := &memAlerts{}
	notifier := &recordingNotifier{}
	clock := newFakeClock(time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC))

	alice := &domain.User{TelegramID: 1, IsActive: true}
	require.NoError(t, users.SaveUser(ctx, alice))
	users.listErr = errors.New("database is locked")

	scores := usecase.NewScoreService(alerts, clock, zap.NewNop())
	sched := usecase.NewRecapScheduler(users, alerts, scores, notifier, clock, 20, zap.NewNop())

	assert.Equal(t, 0, sched.Tick(ctx))
	assert.Empty(t, notifier.recaps)

	users.listErr = nil
	clock.Advance(time.Minute)
	assert.Equal(t, 1, sched.Tick(ctx), "the recap is still due within the hour")
	assert.Contains(t, notifier.recaps, alice.ID)

	clock.Advance(time.Minute)
	assert.Equal(t, 0, sched.Tick(ctx))
}

func TestScoreService_Score(t *testing.T) {
	ctx := context.Background()
	alerts := &memAlerts{}
	clock := newFakeClock(baseTime)

	for i := 0; i < 4; i++ {
		seedAlert(t, alerts, 1, domain.RuleNoStopLoss, baseTime.Add(-time.Duration(i)*time.Hour))
	}
	seedAlert(t, alerts, 1, domain.RuleNoStopLoss, baseTime.Add(-8*24*time.Hour))

	score, err := usecase.NewScoreService(alerts, clock, zap.NewNop()).Score(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, score.Score)
	assert.Equal(t, 4, score.Inputs.TotalAlerts)
	assert.Equal(t, "Platinum", score.Tier.Badge)
	assert.Len(t, alerts.scores, 1)
}
