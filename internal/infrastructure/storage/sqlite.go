package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/risk_guard/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER NOT NULL UNIQUE,
			telegram_username TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL,
			api_secret TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			max_risk_pct REAL NOT NULL DEFAULT 0,
			min_liq_distance_pct REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id),
			rule_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			symbol TEXT NOT NULL,
			message TEXT NOT NULL,
			suggestion TEXT NOT NULL,
			details_kind TEXT NOT NULL DEFAULT '',
			details_json TEXT NOT NULL DEFAULT '{}',
			position_json TEXT,
			is_acknowledged BOOLEAN NOT NULL DEFAULT 0,
			acknowledged_at DATETIME,
			telegram_message_id INTEGER NOT NULL DEFAULT 0,
			triggered_at DATETIME NOT NULL,
			UNIQUE (user_id, alert_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user_triggered ON alerts(user_id, triggered_at);`,
		`CREATE TABLE IF NOT EXISTS button_clicks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			alert_id INTEGER NOT NULL REFERENCES alerts(id),
			button_type TEXT NOT NULL,
			score_impact INTEGER NOT NULL DEFAULT 0,
			clicked_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_user_clicked ON button_clicks(user_id, clicked_at);`,
		`CREATE TABLE IF NOT EXISTS discipline_scores (
			user_id INTEGER NOT NULL REFERENCES users(id),
			date TEXT NOT NULL,
			score REAL NOT NULL,
			total_alerts INTEGER NOT NULL,
			acknowledged_alerts INTEGER NOT NULL,
			positive_actions INTEGER NOT NULL,
			violations INTEGER NOT NULL,
			badge TEXT NOT NULL,
			status TEXT NOT NULL,
			calculated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, date)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// UserRepository Implementation

// SaveUser inserts the user or, for a known telegram id, updates the keys
// and limits. u.ID is set on return.
func (s *SQLiteStore) SaveUser(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = now
	}

	query := `INSERT INTO users (telegram_id, telegram_username, api_key, api_secret, is_active, max_risk_pct, min_liq_distance_pct, created_at, last_seen)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(telegram_id) DO UPDATE SET
			  telegram_username=excluded.telegram_username,
			  api_key=excluded.api_key,
			  api_secret=excluded.api_secret,
			  is_active=excluded.is_active,
			  max_risk_pct=excluded.max_risk_pct,
			  min_liq_distance_pct=excluded.min_liq_distance_pct`
	_, err := s.db.ExecContext(ctx, query,
		u.TelegramID, u.TelegramUsername, u.APIKey, u.APISecret, u.IsActive,
		u.MaxRiskPct, u.MinLiqDistancePct, u.CreatedAt.UTC(), u.LastSeen.UTC())
	if err != nil {
		return err
	}

	return s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE telegram_id = ?`, u.TelegramID).Scan(&u.ID)
}

const userColumns = `id, telegram_id, telegram_username, api_key, api_secret, is_active, max_risk_pct, min_liq_distance_pct, created_at, last_seen`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.TelegramUsername, &u.APIKey, &u.APISecret, &u.IsActive,
		&u.MaxRiskPct, &u.MinLiqDistancePct, &u.CreatedAt, &u.LastSeen)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) ListActiveUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) TouchUser(ctx context.Context, userID int64, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, seenAt.UTC(), userID)
	return err
}

// AlertRepository Implementation

func (s *SQLiteStore) SaveAlert(ctx context.Context, userID int64, alert *domain.Alert) (int64, error) {
	var (
		kind    string
		details = []byte("{}")
		posJSON sql.NullString
	)
	if alert.Details != nil {
		kind = string(alert.Details.Kind())
		b, err := json.Marshal(alert.Details)
		if err != nil {
			return 0, fmt.Errorf("marshal details: %w", err)
		}
		details = b
	}
	if alert.Position != nil {
		b, err := json.Marshal(alert.Position)
		if err != nil {
			return 0, fmt.Errorf("marshal position: %w", err)
		}
		posJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := `INSERT INTO alerts (alert_id, user_id, rule_type, severity, symbol, message, suggestion, details_kind, details_json, position_json, triggered_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		alert.ID, userID, alert.RuleType, alert.Severity, alert.Symbol, alert.Message, alert.Suggestion,
		kind, string(details), posJSON, alert.TriggeredAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const alertColumns = `id, user_id, alert_id, rule_type, severity, symbol, message, suggestion, details_kind, details_json, position_json, is_acknowledged, acknowledged_at, telegram_message_id, triggered_at`

func scanAlert(row interface{ Scan(...any) error }) (*domain.StoredAlert, error) {
	var (
		a       domain.StoredAlert
		kind    string
		details string
		posJSON sql.NullString
		ackAt   sql.NullTime
	)
	err := row.Scan(&a.RowID, &a.UserID, &a.Alert.ID, &a.Alert.RuleType, &a.Alert.Severity, &a.Alert.Symbol,
		&a.Alert.Message, &a.Alert.Suggestion, &kind, &details, &posJSON, &a.Acknowledged, &ackAt,
		&a.TelegramMessageID, &a.Alert.TriggeredAt)
	if err != nil {
		return nil, err
	}

	if kind != "" {
		d, err := domain.DecodeAlertDetails(domain.DetailsKind(kind), []byte(details))
		if err != nil {
			return nil, err
		}
		a.Alert.Details = d
	}
	if posJSON.Valid {
		var p domain.PositionSnapshot
		if err := json.Unmarshal([]byte(posJSON.String), &p); err != nil {
			return nil, fmt.Errorf("decode position of %s: %w", a.Alert.ID, err)
		}
		a.Alert.Position = &p
	}
	if ackAt.Valid {
		t := ackAt.Time.UTC()
		a.AcknowledgedAt = &t
	}
	a.Alert.TriggeredAt = a.Alert.TriggeredAt.UTC()
	return &a, nil
}

func (s *SQLiteStore) queryAlerts(ctx context.Context, query string, args ...any) ([]*domain.StoredAlert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.StoredAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteStore) GetAlert(ctx context.Context, rowID int64) (*domain.StoredAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, rowID)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, userID int64, limit int) ([]*domain.StoredAlert, error) {
	return s.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = ? ORDER BY triggered_at DESC, id DESC LIMIT ?`,
		userID, limit)
}

func (s *SQLiteStore) ListAlertsSince(ctx context.Context, userID int64, since time.Time) ([]*domain.StoredAlert, error) {
	return s.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = ? AND triggered_at >= ? ORDER BY triggered_at, id`,
		userID, since.UTC())
}

func (s *SQLiteStore) SetTelegramMessageID(ctx context.Context, rowID int64, messageID int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET telegram_message_id = ? WHERE id = ?`, messageID, rowID)
	return err
}

// AcknowledgeAlert marks the alert acknowledged. It reports false when the
// alert was already acknowledged.
func (s *SQLiteStore) AcknowledgeAlert(ctx context.Context, rowID int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET is_acknowledged = 1, acknowledged_at = ? WHERE id = ? AND is_acknowledged = 0`,
		at.UTC(), rowID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) SaveButtonClick(ctx context.Context, c *domain.ButtonClick) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO button_clicks (user_id, alert_id, button_type, score_impact, clicked_at) VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.AlertRowID, c.Action, c.ScoreImpact, c.ClickedAt.UTC())
	return err
}

func (s *SQLiteStore) CountScoreInputs(ctx context.Context, userID int64, since time.Time) (domain.DisciplineScoreInputs, error) {
	var in domain.DisciplineScoreInputs
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_acknowledged THEN 1 ELSE 0 END), 0)
		 FROM alerts WHERE user_id = ? AND triggered_at >= ?`,
		userID, since.UTC()).Scan(&in.TotalAlerts, &in.AcknowledgedAlerts)
	if err != nil {
		return in, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM button_clicks WHERE user_id = ? AND clicked_at >= ? AND score_impact > 0`,
		userID, since.UTC()).Scan(&in.PositiveActions)
	return in, err
}

func (s *SQLiteStore) SaveDisciplineScore(ctx context.Context, score *domain.DisciplineScore) error {
	query := `INSERT INTO discipline_scores (user_id, date, score, total_alerts, acknowledged_alerts, positive_actions, violations, badge, status, calculated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(user_id, date) DO UPDATE SET
			  score=excluded.score,
			  total_alerts=excluded.total_alerts,
			  acknowledged_alerts=excluded.acknowledged_alerts,
			  positive_actions=excluded.positive_actions,
			  violations=excluded.violations,
			  badge=excluded.badge,
			  status=excluded.status,
			  calculated_at=excluded.calculated_at`
	in := score.Inputs
	_, err := s.db.ExecContext(ctx, query,
		score.UserID, score.Computed.UTC().Format("2006-01-02"), score.Score,
		in.TotalAlerts, in.AcknowledgedAlerts, in.PositiveActions, in.TotalAlerts-in.AcknowledgedAlerts,
		score.Tier.Badge, score.Tier.Status, score.Computed.UTC())
	return err
}

// LatestDisciplineScore returns the most recent stored score snapshot.
func (s *SQLiteStore) LatestDisciplineScore(ctx context.Context, userID int64) (*domain.DisciplineScore, error) {
	var (
		sc    domain.DisciplineScore
		viol  int
		badge string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, score, total_alerts, acknowledged_alerts, positive_actions, violations, badge, status, calculated_at
		 FROM discipline_scores WHERE user_id = ? ORDER BY date DESC LIMIT 1`, userID).
		Scan(&sc.UserID, &sc.Score, &sc.Inputs.TotalAlerts, &sc.Inputs.AcknowledgedAlerts, &sc.Inputs.PositiveActions,
			&viol, &badge, &sc.Tier.Status, &sc.Computed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, t := range domain.ScoreTiers {
		if t.Badge == badge {
			sc.Tier = t
		}
	}
	return &sc, nil
}

func (s *SQLiteStore) CountAlertsByRule(ctx context.Context, since time.Time) (map[domain.RuleType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_type, COUNT(*) FROM alerts WHERE triggered_at >= ? GROUP BY rule_type`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.RuleType]int)
	for rows.Next() {
		var (
			rule domain.RuleType
			n    int
		)
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, err
		}
		counts[rule] = n
	}
	return counts, rows.Err()
}
