package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
)

const buttonsPerRow = 2

// FormatAlert renders an alert as a Markdown message.
func FormatAlert(a *domain.StoredAlert) string {
	info := domain.Rules[a.Alert.RuleType]
	emoji := info.Emoji
	if emoji == "" {
		emoji = "⚠️"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *Risk Guard Advisory*\n\n", emoji)

	if p := a.Alert.Position; p != nil {
		fmt.Fprintf(&sb, "*%s* • %s • %.4f\n", p.Symbol, p.Side, p.Size)
	}
	fmt.Fprintf(&sb, "*%s*\n", ruleName(a.Alert.RuleType))
	fmt.Fprintf(&sb, "%s\n\n", a.Alert.Message)

	if a.Alert.Suggestion != "" {
		fmt.Fprintf(&sb, "💡 *Suggestion:*\n%s\n\n", a.Alert.Suggestion)
	}

	if p := a.Alert.Position; p != nil {
		if p.RiskPct > 0 {
			fmt.Fprintf(&sb, "📊 Risk: %.1f%%\n", p.RiskPct)
		}
		if p.HasLiquidationPrice() {
			fmt.Fprintf(&sb, "🎯 Liq Distance: %.1f%%\n", p.LiqDistancePct)
		}
		if p.Leverage > 0 {
			fmt.Fprintf(&sb, "⚡ Leverage: %dx\n", p.Leverage)
		}
		if p.UnrealizedPnL != 0 {
			pnlEmoji := "📉"
			if p.UnrealizedPnL > 0 {
				pnlEmoji = "📈"
			}
			fmt.Fprintf(&sb, "%s Unrealized P&L: $%.2f\n", pnlEmoji, p.UnrealizedPnL)
		}
	}

	fmt.Fprintf(&sb, "\n_Alert #%d_", a.RowID)
	return sb.String()
}

// FormatRecap renders the end-of-day summary.
func FormatRecap(r *domain.DailyRecap) string {
	var sb strings.Builder
	sb.WriteString("📊 *Daily Trading Summary*\n\n")
	fmt.Fprintf(&sb, "*%s*\n\n", r.Date)
	fmt.Fprintf(&sb, "Alerts sent: %d\n", r.TotalAlerts)
	fmt.Fprintf(&sb, "Acknowledged: %d/%d\n\n", r.Acknowledged, r.TotalAlerts)

	if len(r.TopViolations) > 0 {
		sb.WriteString("⚠️ *Top Violations:*\n")
		for i, v := range r.TopViolations {
			fmt.Fprintf(&sb, "%d. %s - %dx\n", i+1, ruleName(v.Rule), v.Count)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "🎯 *Discipline Score:* %s %.0f/100\n\n", r.Tier.Emoji, r.Score)
	sb.WriteString("💡 *Focus Tomorrow:*\n")
	sb.WriteString(r.FocusSuggestion)
	return sb.String()
}

func FormatScore(s *domain.DisciplineScore) string {
	var sb strings.Builder
	sb.WriteString("📊 *Discipline Score*\n\n")
	fmt.Fprintf(&sb, "%s *%.0f/100* - %s (%s)\n\n", s.Tier.Emoji, s.Score, s.Tier.Status, s.Tier.Badge)
	fmt.Fprintf(&sb, "Last 7 days: %d alerts, %d acknowledged, %d positive actions\n\n",
		s.Inputs.TotalAlerts, s.Inputs.AcknowledgedAlerts, s.Inputs.PositiveActions)
	sb.WriteString("_Score updates with every alert you answer._")
	return sb.String()
}

// FormatStatus renders the positions seen in the user's last check.
func FormatStatus(view usecase.UserView, ok bool) string {
	if !ok {
		return "📊 No data yet. Your account is checked every few seconds, try again shortly."
	}
	if len(view.Positions) == 0 {
		return fmt.Sprintf("📊 No open positions.\n\n_Checked at %s UTC_", view.CheckedAt.Format("15:04:05"))
	}

	var sb strings.Builder
	sb.WriteString("📊 *Open Positions*\n\n")
	for _, p := range view.Positions {
		sl := "🛡️"
		if !p.HasStopLoss {
			sl = "no SL"
		}
		fmt.Fprintf(&sb, "*%s* %s %dx • risk %.1f%%", p.Symbol, p.Side, p.Leverage, p.RiskPct)
		if p.HasLiquidationPrice() {
			fmt.Fprintf(&sb, " • liq %.1f%%", p.LiqDistancePct)
		}
		fmt.Fprintf(&sb, " • %s\n", sl)
	}
	fmt.Fprintf(&sb, "\n_Checked at %s UTC_", view.CheckedAt.Format("15:04:05"))
	return sb.String()
}

func WelcomeMessage(firstName string, maxRiskPct float64) string {
	return fmt.Sprintf(`🤖 *Risk Guard*

Hey %s! I watch your Bybit futures positions around the clock and alert you when:
⚠️ Risk exceeds %s%%
🔴 Liquidation gets too close
🛡️ You forget to set a stop loss
🧠 Revenge trading patterns show up

*Quick Commands:*
/status - Current positions
/score - Discipline score
/help - Help`, firstName, strconv.FormatFloat(maxRiskPct, 'f', -1, 64))
}

func HelpMessage() string {
	var sb strings.Builder
	sb.WriteString("🆘 *Risk Guard Help*\n\n")
	sb.WriteString("*Alert Types:*\n")
	for _, rule := range domain.AllRules {
		info := domain.Rules[rule]
		fmt.Fprintf(&sb, "%s %s\n", info.Emoji, info.Name)
	}
	sb.WriteString("\n*Action Buttons:*\n")
	for _, action := range []domain.ActionType{domain.ActionAck, domain.ActionCooldown, domain.ActionReduce, domain.ActionSetSL, domain.ActionAddMargin} {
		info := domain.Actions[action]
		if info.ScoreImpact > 0 {
			fmt.Fprintf(&sb, "%s (+%d points)\n", info.Label, info.ScoreImpact)
		} else {
			fmt.Fprintf(&sb, "%s\n", info.Label)
		}
	}
	sb.WriteString("\n*Commands:*\n/status - Current positions\n/score - Discipline score\n/help - This message")
	return sb.String()
}

// AlertKeyboard builds the rule's action buttons for a stored alert.
func AlertKeyboard(a *domain.StoredAlert) tgbotapi.InlineKeyboardMarkup {
	actions := domain.Rules[a.Alert.RuleType].Buttons
	if len(actions) == 0 {
		actions = []domain.ActionType{domain.ActionAck, domain.ActionCooldown, domain.ActionReduce}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, action := range actions {
		info, ok := domain.Actions[action]
		if !ok {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(info.Label, callbackData(action, a.RowID)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func callbackData(action domain.ActionType, rowID int64) string {
	return string(action) + ":" + strconv.FormatInt(rowID, 10)
}

func parseCallbackData(data string) (domain.ActionType, int64, error) {
	action, id, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed callback data %q", data)
	}
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || rowID <= 0 {
		return "", 0, fmt.Errorf("malformed alert id in callback data %q", data)
	}
	return domain.ActionType(action), rowID, nil
}

func ruleName(rule domain.RuleType) string {
	if info, ok := domain.Rules[rule]; ok {
		return info.Name
	}
	return string(rule)
}
