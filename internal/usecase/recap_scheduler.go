package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/zap"
)

const (
	topViolationsInRecap = 3
	noViolationsFocus    = "Keep up the excellent discipline! 🏆"
)

// BuildDailyRecap summarises the alerts a user received on one day.
func BuildDailyRecap(day time.Time, alerts []*domain.StoredAlert, score float64) *domain.DailyRecap {
	recap := &domain.DailyRecap{
		Date:        day.UTC().Format("Monday, January 02, 2006"),
		TotalAlerts: len(alerts),
		Score:       score,
		Tier:        ScoreTierFor(score),
	}

	counts := make(map[domain.RuleType]int)
	for _, a := range alerts {
		if a.Acknowledged {
			recap.Acknowledged++
		}
		counts[a.Alert.RuleType]++
	}

	for _, rule := range domain.AllRules {
		if n := counts[rule]; n > 0 {
			recap.TopViolations = append(recap.TopViolations, domain.RuleCount{Rule: rule, Count: n})
		}
	}
	sort.SliceStable(recap.TopViolations, func(i, j int) bool {
		return recap.TopViolations[i].Count > recap.TopViolations[j].Count
	})
	if len(recap.TopViolations) > topViolationsInRecap {
		recap.TopViolations = recap.TopViolations[:topViolationsInRecap]
	}

	recap.FocusSuggestion = noViolationsFocus
	if len(recap.TopViolations) > 0 {
		recap.FocusSuggestion = domain.Rules[recap.TopViolations[0].Rule].FocusSuggestion
	}
	return recap
}

// RecapScheduler sends the daily recap once per day at the configured UTC
// hour.
type RecapScheduler struct {
	users    domain.UserRepository
	alerts   domain.AlertRepository
	scores   *ScoreService
	notifier domain.AlertNotifier
	clock    Clock
	hour     int
	logger   *zap.Logger

	mu       sync.Mutex
	lastSent string
}

func NewRecapScheduler(
	users domain.UserRepository,
	alerts domain.AlertRepository,
	scores *ScoreService,
	notifier domain.AlertNotifier,
	clock Clock,
	hour int,
	logger *zap.Logger,
) *RecapScheduler {
	return &RecapScheduler{
		users:    users,
		alerts:   alerts,
		scores:   scores,
		notifier: notifier,
		clock:    clock,
		hour:     hour,
		logger:   logger,
	}
}

func (s *RecapScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting daily recap scheduler", zap.Int("hour_utc", s.hour))
	ticker := time.NewTicker(time.Minute)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick sends the recaps if they are due and not yet sent today. It returns
// the number of users that received one.
func (s *RecapScheduler) Tick(ctx context.Context) int {
	now := s.clock.Now().UTC()
	if now.Hour() != s.hour {
		return 0
	}
	today := now.Format("2006-01-02")

	s.mu.Lock()
	if s.lastSent == today {
		s.mu.Unlock()
		return 0
	}
	s.lastSent = today
	s.mu.Unlock()

	sent, err := s.SendAll(ctx, now)
	if err != nil {
		s.logger.Error("Failed to list users for recap", zap.Error(err))
		// retried on the next tick within the hour
		s.mu.Lock()
		if s.lastSent == today {
			s.lastSent = ""
		}
		s.mu.Unlock()
	}
	return sent
}

// SendAll sends the recap for the day of now to every active user. A
// failure for one user does not stop the others; only a failure to list
// the users is returned.
func (s *RecapScheduler) SendAll(ctx context.Context, now time.Time) (int, error) {
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	sent := 0
	for _, u := range users {
		if err := s.sendOne(ctx, u, now); err != nil {
			s.logger.Error("Failed to send daily recap",
				zap.Int64("user_id", u.ID),
				zap.Int64("telegram_id", u.TelegramID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	s.logger.Info("Daily recaps sent", zap.Int("sent", sent), zap.Int("users", len(users)))
	return sent, nil
}

func (s *RecapScheduler) sendOne(ctx context.Context, u *domain.User, now time.Time) error {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	alerts, err := s.alerts.ListAlertsSince(ctx, u.ID, dayStart)
	if err != nil {
		return err
	}
	score, err := s.scores.Score(ctx, u.ID)
	if err != nil {
		return err
	}
	return s.notifier.SendRecap(ctx, u, BuildDailyRecap(now, alerts, score.Score))
}
