package usecase

import (
	"github.com/vitos/risk_guard/internal/domain"
)

type alertDraft struct {
	symbol     string
	severity   domain.Severity
	message    string
	suggestion string
	position   *domain.PositionSnapshot
	details    domain.AlertDetails
}

// AlertFactory turns a rule decision into an Alert and claims the cooldown
// slot for it before handing it out.
type AlertFactory struct {
	cooldowns *CooldownTracker
	clock     Clock
}

func NewAlertFactory(cooldowns *CooldownTracker, clock Clock) *AlertFactory {
	return &AlertFactory{cooldowns: cooldowns, clock: clock}
}

// Create returns nil when another evaluation claimed the slot first.
func (f *AlertFactory) Create(d alertDraft) *domain.Alert {
	now := f.clock.Now()
	rule := d.details.RuleType()
	if !f.cooldowns.TryAcquire(rule, d.symbol, now) {
		return nil
	}

	var pos *domain.PositionSnapshot
	if d.position != nil {
		cp := *d.position
		pos = &cp
	}

	return &domain.Alert{
		ID:          domain.AlertID(rule, d.symbol, now),
		RuleType:    rule,
		Severity:    d.severity,
		Symbol:      d.symbol,
		Message:     d.message,
		Suggestion:  d.suggestion,
		Position:    pos,
		Details:     d.details,
		TriggeredAt: now,
	}
}
