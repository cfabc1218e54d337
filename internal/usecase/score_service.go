package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/zap"
)

// ScoreService computes discipline scores from stored alert history.
type ScoreService struct {
	alerts domain.AlertRepository
	clock  Clock
	logger *zap.Logger
}

func NewScoreService(alerts domain.AlertRepository, clock Clock, logger *zap.Logger) *ScoreService {
	return &ScoreService{alerts: alerts, clock: clock, logger: logger}
}

// Score computes the user's score over the last seven days and stores the
// result as that day's snapshot.
func (s *ScoreService) Score(ctx context.Context, userID int64) (*domain.DisciplineScore, error) {
	now := s.clock.Now()
	in, err := s.alerts.CountScoreInputs(ctx, userID, now.Add(-domain.ScoreWindow))
	if err != nil {
		return nil, fmt.Errorf("count score inputs: %w", err)
	}

	value := CalculateDisciplineScore(in)
	score := &domain.DisciplineScore{
		UserID:   userID,
		Score:    value,
		Tier:     ScoreTierFor(value),
		Inputs:   in,
		Computed: now,
	}
	if err := s.alerts.SaveDisciplineScore(ctx, score); err != nil {
		// the score itself is still valid
		s.logger.Warn("Failed to save discipline score", zap.Int64("user_id", userID), zap.Error(err))
	}
	return score, nil
}
