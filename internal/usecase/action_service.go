package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/zap"
)

type ActionResult struct {
	Action      domain.ActionType
	ScoreImpact int
	Response    string
	Alert       *domain.StoredAlert
}

// ActionService records what users do with the buttons attached to alerts.
type ActionService struct {
	users  domain.UserRepository
	alerts domain.AlertRepository
	clock  Clock
	logger *zap.Logger
}

func NewActionService(users domain.UserRepository, alerts domain.AlertRepository, clock Clock, logger *zap.Logger) *ActionService {
	return &ActionService{users: users, alerts: alerts, clock: clock, logger: logger}
}

// HandleAction stores the click with its score impact and acknowledges the
// alert the first time any button is pressed.
func (s *ActionService) HandleAction(ctx context.Context, telegramID, alertRowID int64, action domain.ActionType) (*ActionResult, error) {
	info, ok := domain.Actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, action)
	}

	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", telegramID, err)
	}
	alert, err := s.alerts.GetAlert(ctx, alertRowID)
	if err != nil {
		return nil, fmt.Errorf("find alert %d: %w", alertRowID, err)
	}
	if alert.UserID != user.ID {
		return nil, domain.ErrAlertNotOwned
	}

	now := s.clock.Now()
	click := &domain.ButtonClick{
		UserID:      user.ID,
		AlertRowID:  alert.RowID,
		Action:      action,
		ScoreImpact: info.ScoreImpact,
		ClickedAt:   now,
	}
	if err := s.alerts.SaveButtonClick(ctx, click); err != nil {
		return nil, fmt.Errorf("save button click: %w", err)
	}

	changed, err := s.alerts.AcknowledgeAlert(ctx, alert.RowID, now)
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	if changed {
		alert.Acknowledged = true
		alert.AcknowledgedAt = &now
	}

	s.logger.Info("Alert action recorded",
		zap.Int64("user_id", user.ID),
		zap.String("alert_id", alert.Alert.ID),
		zap.String("action", string(action)),
		zap.Int("score_impact", info.ScoreImpact),
	)

	response := info.Response
	if info.ScoreImpact > 0 {
		response = fmt.Sprintf("%s (+%d points)", response, info.ScoreImpact)
	}
	return &ActionResult{
		Action:      action,
		ScoreImpact: info.ScoreImpact,
		Response:    response,
		Alert:       alert,
	}, nil
}
