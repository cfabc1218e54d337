package domain

import (
	"context"
	"time"
)

// AccountProvider reads one trader's account from an exchange.
//
// GetPositions may return usable snapshots together with an error made of
// MalformedSnapshotErrors for the rows it could not read; see SplitMalformed.
type AccountProvider interface {
	GetPositions(ctx context.Context) ([]PositionSnapshot, error)
	GetWalletBalance(ctx context.Context) (float64, error)
	GetRecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)
}

// AccountProviderFactory builds an AccountProvider bound to a user's keys.
type AccountProviderFactory interface {
	ForUser(u *User) AccountProvider
}

// UserRepository defines storage operations for monitored users.
type UserRepository interface {
	SaveUser(ctx context.Context, u *User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	ListActiveUsers(ctx context.Context) ([]*User, error)
	TouchUser(ctx context.Context, userID int64, seenAt time.Time) error
}

// AlertRepository defines storage operations for alerts and the user
// responses they collect.
type AlertRepository interface {
	SaveAlert(ctx context.Context, userID int64, alert *Alert) (int64, error)
	GetAlert(ctx context.Context, rowID int64) (*StoredAlert, error)
	ListAlerts(ctx context.Context, userID int64, limit int) ([]*StoredAlert, error)
	ListAlertsSince(ctx context.Context, userID int64, since time.Time) ([]*StoredAlert, error)
	SetTelegramMessageID(ctx context.Context, rowID int64, messageID int) error
	AcknowledgeAlert(ctx context.Context, rowID int64, at time.Time) (bool, error)
	SaveButtonClick(ctx context.Context, click *ButtonClick) error
	CountScoreInputs(ctx context.Context, userID int64, since time.Time) (DisciplineScoreInputs, error)
	SaveDisciplineScore(ctx context.Context, score *DisciplineScore) error
	CountAlertsByRule(ctx context.Context, since time.Time) (map[RuleType]int, error)
}

// AlertNotifier delivers alerts and recaps to the user. SendAlert returns
// the transport message id (0 when the transport has none).
type AlertNotifier interface {
	SendAlert(ctx context.Context, user *User, alert *StoredAlert) (int, error)
	SendRecap(ctx context.Context, user *User, recap *DailyRecap) error
}

// AlertBroadcaster pushes emitted alerts to live dashboards.
type AlertBroadcaster interface {
	BroadcastAlert(alert *StoredAlert)
}
