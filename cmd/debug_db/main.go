package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/infrastructure/storage"
	"github.com/vitos/risk_guard/internal/usecase"
)

func main() {
	dbPath := flag.String("db", "risk_guard.db", "path to the SQLite database")
	limit := flag.Int("alerts", 5, "recent alerts to show per user")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	users, err := store.ListActiveUsers(ctx)
	if err != nil {
		fmt.Printf("Failed to list users: %v\n", err)
		os.Exit(1)
	}

	since := time.Now().UTC().Add(-domain.ScoreWindow)
	fmt.Printf("Found %d active users:\n", len(users))
	for _, u := range users {
		fmt.Printf("- User ID: %d, Telegram: %d (@%s), last seen %s\n",
			u.ID, u.TelegramID, u.TelegramUsername, u.LastSeen.Format(time.RFC3339))

		in, err := store.CountScoreInputs(ctx, u.ID, since)
		if err != nil {
			fmt.Printf("  ❌ Failed to count score inputs: %v\n", err)
		} else {
			score := usecase.CalculateDisciplineScore(in)
			tier := usecase.ScoreTierFor(score)
			fmt.Printf("  %s Score: %.0f/100 (%s) alerts=%d acked=%d positive=%d\n",
				tier.Emoji, score, tier.Badge, in.TotalAlerts, in.AcknowledgedAlerts, in.PositiveActions)
		}

		if last, err := store.LatestDisciplineScore(ctx, u.ID); err == nil {
			fmt.Printf("  Last stored score: %.0f at %s\n", last.Score, last.Computed.Format(time.RFC3339))
		}

		alerts, err := store.ListAlerts(ctx, u.ID, *limit)
		if err != nil {
			fmt.Printf("  ❌ Failed to list alerts: %v\n", err)
			continue
		}
		if len(alerts) == 0 {
			fmt.Printf("  ⚠️ No alerts\n")
		}
		for _, a := range alerts {
			ack := " "
			if a.Acknowledged {
				ack = "✓"
			}
			fmt.Printf("  [%s] #%d %s %-8s %-10s %s\n",
				ack, a.RowID, a.Alert.TriggeredAt.Format("01-02 15:04"), a.Alert.RuleType, a.Alert.Symbol, a.Alert.Message)
		}
	}
}
