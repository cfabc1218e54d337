package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitos/risk_guard/internal/config"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/infrastructure/exchange"
	"github.com/vitos/risk_guard/internal/infrastructure/logger"
	"github.com/vitos/risk_guard/internal/infrastructure/metrics"
	"github.com/vitos/risk_guard/internal/infrastructure/storage"
	"github.com/vitos/risk_guard/internal/infrastructure/telegram"
	"github.com/vitos/risk_guard/internal/usecase"
	"github.com/vitos/risk_guard/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Init Exchange
	clock := usecase.SystemClock{}
	providers := exchange.NewBybitFactory(cfg.ExchangeBaseURL(), log.Named("bybit"))

	// 5. Init Services
	scores := usecase.NewScoreService(store, clock, log)
	actions := usecase.NewActionService(store, store, clock, log)

	// 6. Init Telegram
	var (
		notifier domain.AlertNotifier
		bot      *telegram.Bot
	)
	if cfg.Telegram.BotToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, alerts will only be stored and broadcast")
	} else {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Fatal("Failed to init telegram bot", zap.Error(err))
		}
		bot = telegram.NewBot(api, store, actions, scores, nil, cfg.Rules.MaxRiskPct, log.Named("telegram"))
		notifier = bot
	}

	// 7. Init Monitor
	monitor, err := usecase.NewPositionMonitor(cfg.MonitorConfig(), cfg.Rules, store, store, providers, notifier, clock, log.Named("monitor"))
	if err != nil {
		log.Fatal("Invalid rule configuration", zap.Error(err))
	}
	monitor.SetMetrics(metrics.NewMonitorMetrics(prometheus.DefaultRegisterer))

	hub := web.NewHub(log.Named("ws"))
	go hub.Run(ctx)
	monitor.SetBroadcaster(hub)

	if bot != nil {
		bot.SetPositionViewer(monitor)
		bot.Start(ctx)
	}
	monitor.Start(ctx)

	if cfg.Recap.Enabled && notifier != nil {
		usecase.NewRecapScheduler(store, store, scores, notifier, clock, cfg.Recap.HourUTC, log.Named("recap")).Start(ctx)
	}

	// 8. Init Web Server
	server := web.NewServer(cfg.Server.Port, cfg.Server.RequestsPerSecond, cfg.Server.Burst, web.Deps{
		Users:     store,
		Alerts:    store,
		Scores:    scores,
		Positions: monitor,
		Providers: providers,
		Hub:       hub,
		Gatherer:  prometheus.DefaultGatherer,
		Rules:     cfg.Rules,
		Clock:     clock,
	}, log.Named("http"))
	server.StartLimiterCleanup(ctx, 5*time.Minute)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	// 9. Wait for Shutdown
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
