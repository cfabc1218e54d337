package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
	"go.uber.org/zap"
)

// PositionViewer exposes the positions seen in a user's last check.
type PositionViewer interface {
	View(userID int64) (usecase.UserView, bool)
}

type Deps struct {
	Users     domain.UserRepository
	Alerts    domain.AlertRepository
	Scores    *usecase.ScoreService
	Positions PositionViewer
	Providers domain.AccountProviderFactory
	Hub       *Hub
	Gatherer  prometheus.Gatherer
	Rules     domain.RuleConfig
	Clock     usecase.Clock
}

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	deps    Deps
	limiter *ipRateLimiter
	started time.Time
	logger  *zap.Logger
}

func NewServer(port int, requestsPerSecond float64, burst int, deps Deps, logger *zap.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = usecase.SystemClock{}
	}
	s := &Server{
		router:  http.NewServeMux(),
		deps:    deps,
		limiter: newIPRateLimiter(requestsPerSecond, burst),
		started: deps.Clock.Now(),
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)

	// Users
	s.router.HandleFunc("POST /users/register", s.handleRegister)
	s.router.HandleFunc("GET /users/{telegram_id}/alerts", s.handleUserAlerts)
	s.router.HandleFunc("GET /users/{telegram_id}/score", s.handleUserScore)
	s.router.HandleFunc("GET /users/{telegram_id}/positions", s.handleUserPositions)

	s.router.HandleFunc("GET /stats", s.handleStats)

	if s.deps.Gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.deps.Hub != nil {
		s.router.HandleFunc("GET /ws/alerts", s.deps.Hub.ServeWS)
	}
}

// Handler is the router wrapped in the request-id, access-log and rate
// limit middleware.
func (s *Server) Handler() http.Handler {
	return withRequestID(accessLog(s.logger, s.limiter.middleware(s.router)))
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartLimiterCleanup periodically forgets per-IP buckets.
func (s *Server) StartLimiterCleanup(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.reset()
			}
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
