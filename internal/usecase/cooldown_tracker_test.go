package usecase_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
)

func TestCooldownTracker_Window(t *testing.T) {
	tr := usecase.NewCooldownTracker(map[domain.RuleType]time.Duration{
		domain.RuleHighRisk: 5 * time.Minute,
	})

	assert.True(t, tr.ShouldFire(domain.RuleHighRisk, "BTCUSDT", baseTime))
	tr.RecordFired(domain.RuleHighRisk, "BTCUSDT", baseTime)

	assert.False(t, tr.ShouldFire(domain.RuleHighRisk, "BTCUSDT", baseTime.Add(4*time.Minute+59*time.Second)))
	assert.True(t, tr.ShouldFire(domain.RuleHighRisk, "BTCUSDT", baseTime.Add(5*time.Minute)))
}

func TestCooldownTracker_ScopedToRuleAndSymbol(t *testing.T) {
	tr := usecase.NewCooldownTracker(domain.DefaultRuleConfig().CooldownWindows())
	tr.RecordFired(domain.RuleHighRisk, "BTCUSDT", baseTime)

	assert.False(t, tr.ShouldFire(domain.RuleHighRisk, "BTCUSDT", baseTime))
	assert.True(t, tr.ShouldFire(domain.RuleHighRisk, "ETHUSDT", baseTime))
	assert.True(t, tr.ShouldFire(domain.RuleNoStopLoss, "BTCUSDT", baseTime))
}

func TestCooldownTracker_UnknownRuleUsesDefault(t *testing.T) {
	tr := usecase.NewCooldownTracker(nil)
	assert.Equal(t, 300*time.Second, tr.Window(domain.RuleLiqRisk))
}

func TestCooldownTracker_TryAcquire(t *testing.T) {
	tr := usecase.NewCooldownTracker(domain.DefaultRuleConfig().CooldownWindows())

	assert.True(t, tr.TryAcquire(domain.RuleLiqRisk, "SOLUSDT", baseTime))
	assert.False(t, tr.TryAcquire(domain.RuleLiqRisk, "SOLUSDT", baseTime.Add(time.Minute)))

	last, ok := tr.LastFired(domain.RuleLiqRisk, "SOLUSDT")
	assert.True(t, ok)
	assert.Equal(t, baseTime, last, "a refused acquire must not move the clock")
}

func TestCooldownTracker_TryAcquireConcurrent(t *testing.T) {
	tr := usecase.NewCooldownTracker(domain.DefaultRuleConfig().CooldownWindows())

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.TryAcquire(domain.RuleHighRisk, "BTCUSDT", baseTime) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
