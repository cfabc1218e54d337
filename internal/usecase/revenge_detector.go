package usecase

import (
	"sort"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
)

const (
	quickReentryWindow     = 5 * time.Minute
	highFrequencyWindow    = 30 * time.Minute
	highFrequencyThreshold = 5
	minRevengeLosses       = 2
)

// RevengeDetector looks for emotional trading in the recent trade history.
type RevengeDetector struct {
	window time.Duration
}

func NewRevengeDetector(window time.Duration) *RevengeDetector {
	return &RevengeDetector{window: window}
}

// Detect returns the first pattern found, or nil. Fewer than two trades is
// never a pattern.
func (d *RevengeDetector) Detect(trades []domain.TradeRecord, hasOpenPosition bool, now time.Time) domain.AlertDetails {
	if len(trades) < 2 {
		return nil
	}

	sorted := make([]domain.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ClosedAt.After(sorted[j].ClosedAt)
	})

	if details := d.quickReentry(sorted, hasOpenPosition, now); details != nil {
		return details
	}
	return d.highFrequency(sorted, now)
}

func (d *RevengeDetector) quickReentry(trades []domain.TradeRecord, hasOpenPosition bool, now time.Time) domain.AlertDetails {
	var recent, losses []domain.TradeRecord
	for _, tr := range trades {
		if now.Sub(tr.ClosedAt) < d.window {
			recent = append(recent, tr)
			if !tr.IsWin {
				losses = append(losses, tr)
			}
		}
	}
	if len(recent) < 2 || len(losses) < minRevengeLosses || !hasOpenPosition {
		return nil
	}

	// a close stamped ahead of our clock counts as just now
	sinceLast := max(now.Sub(losses[0].ClosedAt), 0)
	if sinceLast >= quickReentryWindow {
		return nil
	}
	return domain.QuickReentryDetails{
		RecentLosses:         len(losses),
		MinutesSinceLastLoss: int(sinceLast.Minutes()),
	}
}

func (d *RevengeDetector) highFrequency(trades []domain.TradeRecord, now time.Time) domain.AlertDetails {
	cutoff := now.Add(-highFrequencyWindow)
	count := 0
	for _, tr := range trades {
		if tr.ClosedAt.After(cutoff) {
			count++
		}
	}
	if count < highFrequencyThreshold {
		return nil
	}
	return domain.HighFrequencyDetails{TradeCount: count, Timeframe: "30 minutes"}
}
