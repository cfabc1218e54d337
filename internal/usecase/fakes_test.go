package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
)

type memUsers struct {
	mu      sync.Mutex
	users   []*domain.User
	touched map[int64]time.Time
	listErr error
}

func (r *memUsers) SaveUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = int64(len(r.users) + 1)
	r.users = append(r.users, u)
	return nil
}

func (r *memUsers) GetUserByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUsers) ListActiveUsers(context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.User
	for _, u := range r.users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUsers) TouchUser(_ context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touched == nil {
		r.touched = make(map[int64]time.Time)
	}
	r.touched[userID] = at
	return nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts []*domain.StoredAlert
	clicks []*domain.ButtonClick
	scores []*domain.DisciplineScore
}

func (r *memAlerts) SaveAlert(_ context.Context, userID int64, a *domain.Alert) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := int64(len(r.alerts) + 1)
	r.alerts = append(r.alerts, &domain.StoredAlert{RowID: id, UserID: userID, Alert: *a})
	return id, nil
}

func (r *memAlerts) GetAlert(_ context.Context, rowID int64) (*domain.StoredAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.RowID == rowID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memAlerts) ListAlerts(_ context.Context, userID int64, limit int) ([]*domain.StoredAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StoredAlert
	for i := len(r.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.alerts[i].UserID == userID {
			out = append(out, r.alerts[i])
		}
	}
	return out, nil
}

func (r *memAlerts) ListAlertsSince(_ context.Context, userID int64, since time.Time) ([]*domain.StoredAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StoredAlert
	for _, a := range r.alerts {
		if a.UserID == userID && !a.Alert.TriggeredAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAlerts) SetTelegramMessageID(_ context.Context, rowID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.RowID == rowID {
			a.TelegramMessageID = messageID
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memAlerts) AcknowledgeAlert(_ context.Context, rowID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.RowID == rowID {
			if a.Acknowledged {
				return false, nil
			}
			a.Acknowledged = true
			a.AcknowledgedAt = &at
			return true, nil
		}
	}
	return false, domain.ErrNotFound
}

func (r *memAlerts) SaveButtonClick(_ context.Context, c *domain.ButtonClick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, c)
	return nil
}

func (r *memAlerts) CountScoreInputs(_ context.Context, userID int64, since time.Time) (domain.DisciplineScoreInputs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var in domain.DisciplineScoreInputs
	for _, a := range r.alerts {
		if a.UserID != userID || a.Alert.TriggeredAt.Before(since) {
			continue
		}
		in.TotalAlerts++
		if a.Acknowledged {
			in.AcknowledgedAlerts++
		}
	}
	for _, c := range r.clicks {
		if c.UserID == userID && c.ScoreImpact > 0 && !c.ClickedAt.Before(since) {
			in.PositiveActions++
		}
	}
	return in, nil
}

func (r *memAlerts) SaveDisciplineScore(_ context.Context, s *domain.DisciplineScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, s)
	return nil
}

func (r *memAlerts) CountAlertsByRule(_ context.Context, since time.Time) (map[domain.RuleType]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.RuleType]int)
	for _, a := range r.alerts {
		if !a.Alert.TriggeredAt.Before(since) {
			out[a.Alert.RuleType]++
		}
	}
	return out, nil
}

type stubAccount struct {
	positions []domain.PositionSnapshot
	trades    []domain.TradeRecord
	posErr    error
	tradeErr  error
}

func (a *stubAccount) GetPositions(context.Context) ([]domain.PositionSnapshot, error) {
	return a.positions, a.posErr
}

func (a *stubAccount) GetWalletBalance(context.Context) (float64, error) { return 10000, nil }

func (a *stubAccount) GetRecentTrades(context.Context, int) ([]domain.TradeRecord, error) {
	return a.trades, a.tradeErr
}

type stubAccounts map[int64]*stubAccount

func (s stubAccounts) ForUser(u *domain.User) domain.AccountProvider {
	if a, ok := s[u.ID]; ok {
		return a
	}
	return &stubAccount{posErr: errors.New("no account")}
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*domain.StoredAlert
	recaps map[int64]*domain.DailyRecap
	failOn map[int64]bool
}

func (n *recordingNotifier) SendAlert(_ context.Context, u *domain.User, a *domain.StoredAlert) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[u.ID] {
		return 0, errors.New("chat blocked")
	}
	n.alerts = append(n.alerts, a)
	return 1000 + len(n.alerts), nil
}

func (n *recordingNotifier) SendRecap(_ context.Context, u *domain.User, r *domain.DailyRecap) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[u.ID] {
		return errors.New("chat blocked")
	}
	if n.recaps == nil {
		n.recaps = make(map[int64]*domain.DailyRecap)
	}
	n.recaps[u.ID] = r
	return nil
}

type countingBroadcaster struct {
	mu  sync.Mutex
	got []*domain.StoredAlert
}

func (b *countingBroadcaster) BroadcastAlert(a *domain.StoredAlert) {
	b.mu.Lock()
	b.got = append(b.got, a)
	b.mu.Unlock()
}
