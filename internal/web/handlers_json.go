package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
	"go.uber.org/zap"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"service":   "risk_guard",
		"timestamp": s.deps.Clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(s.deps.Clock.Now().Sub(s.started).Seconds()),
		"settings": map[string]interface{}{
			"max_risk_pct":         s.deps.Rules.MaxRiskPct,
			"min_liq_distance_pct": s.deps.Rules.MinLiqDistancePct,
		},
	}
	if s.deps.Hub != nil {
		resp["dashboard_clients"] = s.deps.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	TelegramID        int64   `json:"telegram_id"`
	TelegramUsername  string  `json:"telegram_username"`
	APIKey            string  `json:"api_key"`
	APISecret         string  `json:"api_secret"`
	MaxRiskPct        float64 `json:"max_risk_pct"`
	MinLiqDistancePct float64 `json:"min_liq_distance_pct"`
}

func (req registerRequest) validate() error {
	switch {
	case req.TelegramID <= 0:
		return errors.New("telegram_id is required")
	case req.APIKey == "" || req.APISecret == "":
		return errors.New("api_key and api_secret are required")
	case req.MaxRiskPct < 0 || math.IsNaN(req.MaxRiskPct):
		return errors.New("max_risk_pct must not be negative")
	case req.MinLiqDistancePct < 0 || math.IsNaN(req.MinLiqDistancePct):
		return errors.New("min_liq_distance_pct must not be negative")
	}
	return nil
}

// handleRegister stores a new user after checking the keys can read the
// account balance.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	_, err := s.deps.Users.GetUserByTelegramID(ctx, req.TelegramID)
	switch {
	case err == nil:
		writeError(w, http.StatusConflict, "user already registered")
		return
	case !errors.Is(err, domain.ErrNotFound):
		s.logger.Error("User lookup failed", zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	now := s.deps.Clock.Now()
	user := &domain.User{
		TelegramID:        req.TelegramID,
		TelegramUsername:  req.TelegramUsername,
		APIKey:            req.APIKey,
		APISecret:         req.APISecret,
		IsActive:          true,
		MaxRiskPct:        req.MaxRiskPct,
		MinLiqDistancePct: req.MinLiqDistancePct,
		CreatedAt:         now,
		LastSeen:          now,
	}

	if s.deps.Providers != nil {
		if _, err := s.deps.Providers.ForUser(user).GetWalletBalance(ctx); err != nil {
			writeError(w, http.StatusBadRequest, "invalid exchange API credentials: "+err.Error())
			return
		}
	}

	if err := s.deps.Users.SaveUser(ctx, user); err != nil {
		s.logger.Error("Failed to save user", zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save user")
		return
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.Int64("telegram_id", user.TelegramID))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user_id": user.ID,
		"message": "User registered successfully",
	})
}

// userFromPath resolves {telegram_id}, writing the error response itself
// when it fails.
func (s *Server) userFromPath(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	telegramID, err := strconv.ParseInt(r.PathValue("telegram_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid telegram_id")
		return nil, false
	}
	user, err := s.deps.Users.GetUserByTelegramID(r.Context(), telegramID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("User lookup failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return nil, false
	}
	return user, true
}

func (s *Server) handleUserAlerts(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromPath(w, r)
	if !ok {
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}

	alerts, err := s.deps.Alerts.ListAlerts(r.Context(), user.ID, limit)
	if err != nil {
		s.logger.Error("Failed to list alerts", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*domain.StoredAlert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      user.ID,
		"telegram_id":  user.TelegramID,
		"total_alerts": len(alerts),
		"alerts":       alerts,
	})
}

func (s *Server) handleUserScore(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromPath(w, r)
	if !ok {
		return
	}
	score, err := s.deps.Scores.Score(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("Failed to compute score", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute score")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     user.ID,
		"telegram_id": user.TelegramID,
		"score":       score.Score,
		"badge":       score.Tier.Emoji + " " + score.Tier.Badge,
		"status":      score.Tier.Status,
		"inputs":      score.Inputs,
	})
}

// handleUserPositions serves the monitor's last view of the account, or
// reads the exchange directly when the user has not been checked yet.
func (s *Server) handleUserPositions(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFromPath(w, r)
	if !ok {
		return
	}

	var (
		positions []domain.PositionSnapshot
		checkedAt time.Time
		source    = "monitor"
		view      usecase.UserView
		seen      bool
	)
	if s.deps.Positions != nil {
		view, seen = s.deps.Positions.View(user.ID)
	}
	switch {
	case seen:
		positions, checkedAt = view.Positions, view.CheckedAt
	case s.deps.Providers != nil:
		live, err := s.deps.Providers.ForUser(user).GetPositions(r.Context())
		if _, err = domain.SplitMalformed(err); err != nil {
			s.logger.Error("Failed to fetch positions", zap.Int64("user_id", user.ID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to fetch positions from exchange")
			return
		}
		positions, checkedAt, source = live, s.deps.Clock.Now(), "exchange"
	}
	if positions == nil {
		positions = []domain.PositionSnapshot{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         user.ID,
		"telegram_id":     user.TelegramID,
		"positions_count": len(positions),
		"positions":       positions,
		"checked_at":      checkedAt,
		"source":          source,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.deps.Users.ListActiveUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	now := s.deps.Clock.Now()
	byRule, err := s.deps.Alerts.CountAlertsByRule(ctx, now.UTC().Truncate(24*time.Hour))
	if err != nil {
		s.logger.Error("Failed to count alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	total := 0
	for _, n := range byRule {
		total += n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_users":         len(users),
		"alerts_today":         total,
		"alerts_today_by_rule": byRule,
		"uptime_seconds":       int(now.Sub(s.started).Seconds()),
	})
}
