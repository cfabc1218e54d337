package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MonitorMetrics receives counters from the poll loop.
type MonitorMetrics interface {
	AlertEmitted(rule domain.RuleType, severity domain.Severity)
	AlertSuppressed(rule domain.RuleType)
	MalformedSnapshot()
	UserCheckFailed()
	CycleCompleted(d time.Duration, users int)
}

type nopMetrics struct{}

func (nopMetrics) AlertEmitted(domain.RuleType, domain.Severity) {}
func (nopMetrics) AlertSuppressed(domain.RuleType)               {}
func (nopMetrics) MalformedSnapshot()                            {}
func (nopMetrics) UserCheckFailed()                              {}
func (nopMetrics) CycleCompleted(time.Duration, int)             {}

type MonitorConfig struct {
	PollInterval       time.Duration
	MaxConcurrentUsers int
	TradeHistoryLimit  int
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:       15 * time.Second,
		MaxConcurrentUsers: 8,
		TradeHistoryLimit:  20,
	}
}

// UserView is the latest evaluated state of one user's account.
type UserView struct {
	Positions []domain.PositionSnapshot `json:"positions"`
	CheckedAt time.Time                 `json:"checked_at"`
}

// PositionMonitor polls every active user's account and turns rule
// violations into delivered alerts.
type PositionMonitor struct {
	cfg         MonitorConfig
	rules       domain.RuleConfig
	users       domain.UserRepository
	alerts      domain.AlertRepository
	providers   domain.AccountProviderFactory
	notifier    domain.AlertNotifier
	broadcaster domain.AlertBroadcaster
	metrics     MonitorMetrics
	clock       Clock
	logger      *zap.Logger

	mu      sync.RWMutex
	engines map[int64]*RuleEngine
	views   map[int64]UserView
}

func NewPositionMonitor(
	cfg MonitorConfig,
	rules domain.RuleConfig,
	users domain.UserRepository,
	alerts domain.AlertRepository,
	providers domain.AccountProviderFactory,
	notifier domain.AlertNotifier,
	clock Clock,
	logger *zap.Logger,
) (*PositionMonitor, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentUsers < 1 {
		cfg.MaxConcurrentUsers = 1
	}
	return &PositionMonitor{
		cfg:       cfg,
		rules:     rules,
		users:     users,
		alerts:    alerts,
		providers: providers,
		notifier:  notifier,
		metrics:   nopMetrics{},
		clock:     clock,
		logger:    logger,
		engines:   make(map[int64]*RuleEngine),
		views:     make(map[int64]UserView),
	}, nil
}

func (m *PositionMonitor) SetBroadcaster(b domain.AlertBroadcaster) { m.broadcaster = b }

func (m *PositionMonitor) SetMetrics(mm MonitorMetrics) { m.metrics = mm }

func (m *PositionMonitor) Start(ctx context.Context) {
	m.logger.Info("Starting position monitor", zap.Duration("interval", m.cfg.PollInterval))
	ticker := time.NewTicker(m.cfg.PollInterval)

	go func() {
		defer ticker.Stop()
		for {
			if err := m.RunCycle(ctx); err != nil {
				m.logger.Warn("Monitor cycle finished with errors", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				m.logger.Info("Position monitor stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// RunCycle checks every active user once. Users are checked concurrently;
// the returned error combines the failures of individual users.
func (m *PositionMonitor) RunCycle(ctx context.Context) error {
	start := time.Now()
	users, err := m.users.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		errAll error
	)
	g.SetLimit(m.cfg.MaxConcurrentUsers)
	for _, u := range users {
		u := u
		g.Go(func() error {
			if err := m.CheckUser(ctx, u); err != nil {
				m.metrics.UserCheckFailed()
				m.logger.Error("User check failed", zap.Int64("user_id", u.ID), zap.Error(err))
				errMu.Lock()
				errAll = multierr.Append(errAll, fmt.Errorf("user %d: %w", u.ID, err))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.metrics.CycleCompleted(time.Since(start), len(users))
	return errAll
}

// CheckUser evaluates one user's positions and recent trades.
func (m *PositionMonitor) CheckUser(ctx context.Context, u *domain.User) error {
	engine, err := m.Engine(u)
	if err != nil {
		return err
	}
	provider := m.providers.ForUser(u)

	positions, err := provider.GetPositions(ctx)
	unreadable, err := domain.SplitMalformed(err)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	res := engine.EvaluatePositions(positions)
	for _, f := range append(unreadable, res.Failures...) {
		m.metrics.MalformedSnapshot()
		m.logger.Warn("Malformed position", zap.Int64("user_id", u.ID), zap.Error(f))
	}
	for _, rule := range res.Suppressed {
		m.metrics.AlertSuppressed(rule)
	}

	var errs error
	for _, alert := range res.Alerts {
		errs = multierr.Append(errs, m.deliver(ctx, u, alert))
	}

	trades, err := provider.GetRecentTrades(ctx, m.cfg.TradeHistoryLimit)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("get recent trades: %w", err))
	} else {
		alert, suppressed := engine.CheckRevengePattern(trades, len(positions))
		if suppressed {
			m.metrics.AlertSuppressed(domain.RuleRevenge)
		}
		if alert != nil {
			errs = multierr.Append(errs, m.deliver(ctx, u, alert))
		}
	}

	now := m.clock.Now()
	m.mu.Lock()
	m.views[u.ID] = UserView{Positions: positions, CheckedAt: now}
	m.mu.Unlock()

	if err := m.users.TouchUser(ctx, u.ID, now); err != nil {
		m.logger.Warn("Failed to update last seen", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	return errs
}

// Engine returns the user's rule engine, creating it on first use with the
// user's own limits applied.
func (m *PositionMonitor) Engine(u *domain.User) (*RuleEngine, error) {
	m.mu.RLock()
	e, ok := m.engines[u.ID]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.engines[u.ID]; ok {
		return e, nil
	}
	e, err := NewRuleEngine(m.rules.WithUserLimits(u), m.clock, m.logger.With(zap.Int64("user_id", u.ID)))
	if err != nil {
		return nil, err
	}
	m.engines[u.ID] = e
	return e, nil
}

// View returns the positions seen in the user's last check.
func (m *PositionMonitor) View(userID int64) (UserView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[userID]
	return v, ok
}

func (m *PositionMonitor) deliver(ctx context.Context, u *domain.User, alert *domain.Alert) error {
	rowID, err := m.alerts.SaveAlert(ctx, u.ID, alert)
	if err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	m.metrics.AlertEmitted(alert.RuleType, alert.Severity)

	stored := &domain.StoredAlert{RowID: rowID, UserID: u.ID, Alert: *alert}
	m.logger.Info("Alert triggered",
		zap.Int64("user_id", u.ID),
		zap.String("alert_id", alert.ID),
		zap.String("rule", string(alert.RuleType)),
		zap.String("symbol", alert.Symbol),
		zap.String("message", alert.Message),
	)

	if m.broadcaster != nil {
		m.broadcaster.BroadcastAlert(stored)
	}
	if m.notifier == nil {
		return nil
	}

	msgID, err := m.notifier.SendAlert(ctx, u, stored)
	if err != nil {
		return fmt.Errorf("send alert %s: %w", alert.ID, err)
	}
	if msgID != 0 {
		if err := m.alerts.SetTelegramMessageID(ctx, rowID, msgID); err != nil {
			m.logger.Warn("Failed to store message id", zap.String("alert_id", alert.ID), zap.Error(err))
		}
		stored.TelegramMessageID = msgID
	}
	return nil
}
