package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/risk_guard/internal/config"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/infrastructure/exchange"
	"github.com/vitos/risk_guard/internal/usecase"
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
	if len(cfg.Exchange.APIKey) < 4 || cfg.Exchange.APISecret == "" {
		fmt.Println("Set BYBIT_API_KEY and BYBIT_API_SECRET first")
		os.Exit(1)
	}

	fmt.Printf("Testing Bybit Interaction...\n")
	fmt.Printf("Endpoint: %s\n", cfg.ExchangeBaseURL())
	fmt.Printf("API Key: %s...\n", cfg.Exchange.APIKey[:4])

	log := zap.NewNop()
	adapter := exchange.NewBybitAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.ExchangeBaseURL(), log)
	ctx := context.Background()

	// 2. Balance
	balance, err := adapter.GetWalletBalance(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get balance: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Wallet balance: %.2f USDT\n", balance)

	// 3. Positions
	positions, err := adapter.GetPositions(ctx)
	unreadable, err := domain.SplitMalformed(err)
	for _, e := range unreadable {
		fmt.Printf("⚠️ %v\n", e)
	}
	if err != nil {
		fmt.Printf("❌ Failed to get positions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d open positions\n", len(positions))
	for _, p := range positions {
		fmt.Printf("  %s %s size=%f entry=%f mark=%f lev=%dx risk=%.2f%% liq=%.2f%% sl=%v\n",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.MarkPrice, p.Leverage, p.RiskPct, p.LiqDistancePct, p.HasStopLoss)
	}

	// 4. Closed trades
	trades, err := adapter.GetRecentTrades(ctx, cfg.Monitor.TradeHistoryLimit)
	if err != nil {
		fmt.Printf("❌ Failed to get closed trades: %v\n", err)
	} else {
		fmt.Printf("✅ %d closed trades in the last 7 days\n", len(trades))
	}

	// 5. Dry-run the rules
	engine, err := usecase.NewRuleEngine(cfg.Rules, usecase.SystemClock{}, log)
	if err != nil {
		fmt.Printf("❌ Invalid rule config: %v\n", err)
		os.Exit(1)
	}
	res := engine.EvaluatePositions(positions)
	for _, f := range res.Failures {
		fmt.Printf("⚠️ %v\n", f)
	}
	if alert, _ := engine.CheckRevengePattern(trades, len(positions)); alert != nil {
		res.Alerts = append(res.Alerts, alert)
	}
	if len(res.Alerts) == 0 {
		fmt.Println("✅ No rule violations")
	}
	for _, a := range res.Alerts {
		fmt.Printf("🚨 [%s] %s: %s | %s\n", a.RuleType, a.Symbol, a.Message, a.Suggestion)
	}
}
