package usecase

import (
	"sync"
	"time"

	"github.com/vitos/risk_guard/internal/domain"
)

type cooldownKey struct {
	rule   domain.RuleType
	symbol string
}

// CooldownTracker remembers when each (rule, symbol) pair last produced an
// alert. Entries are overwritten, never removed.
type CooldownTracker struct {
	mu        sync.Mutex
	windows   map[domain.RuleType]time.Duration
	lastFired map[cooldownKey]time.Time
}

func NewCooldownTracker(windows map[domain.RuleType]time.Duration) *CooldownTracker {
	w := make(map[domain.RuleType]time.Duration, len(windows))
	for k, v := range windows {
		w[k] = v
	}
	return &CooldownTracker{
		windows:   w,
		lastFired: make(map[cooldownKey]time.Time),
	}
}

func (t *CooldownTracker) Window(rule domain.RuleType) time.Duration {
	if w, ok := t.windows[rule]; ok {
		return w
	}
	return domain.DefaultCooldownSeconds * time.Second
}

func (t *CooldownTracker) ShouldFire(rule domain.RuleType, symbol string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shouldFireLocked(rule, symbol, now)
}

func (t *CooldownTracker) RecordFired(rule domain.RuleType, symbol string, now time.Time) {
	t.mu.Lock()
	t.lastFired[cooldownKey{rule, symbol}] = now
	t.mu.Unlock()
}

// TryAcquire checks and records in one step. It returns false when the pair
// is still cooling down, in which case nothing is recorded.
func (t *CooldownTracker) TryAcquire(rule domain.RuleType, symbol string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.shouldFireLocked(rule, symbol, now) {
		return false
	}
	t.lastFired[cooldownKey{rule, symbol}] = now
	return true
}

// LastFired returns when the pair last fired, if ever.
func (t *CooldownTracker) LastFired(rule domain.RuleType, symbol string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.lastFired[cooldownKey{rule, symbol}]
	return at, ok
}

func (t *CooldownTracker) shouldFireLocked(rule domain.RuleType, symbol string, now time.Time) bool {
	last, ok := t.lastFired[cooldownKey{rule, symbol}]
	if !ok {
		return true
	}
	return now.Sub(last) >= t.Window(rule)
}
