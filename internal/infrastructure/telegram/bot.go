package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Telegram allows about 30 messages per second per bot.
const sendRatePerSecond = 25

// PositionViewer exposes the positions seen in a user's last check.
type PositionViewer interface {
	View(userID int64) (usecase.UserView, bool)
}

// Bot delivers alerts and recaps and answers user commands and button
// clicks.
type Bot struct {
	api        *tgbotapi.BotAPI
	users      domain.UserRepository
	actions    *usecase.ActionService
	scores     *usecase.ScoreService
	positions  PositionViewer
	maxRiskPct float64
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewBot(
	api *tgbotapi.BotAPI,
	users domain.UserRepository,
	actions *usecase.ActionService,
	scores *usecase.ScoreService,
	positions PositionViewer,
	maxRiskPct float64,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		api:        api,
		users:      users,
		actions:    actions,
		scores:     scores,
		positions:  positions,
		maxRiskPct: maxRiskPct,
		limiter:    rate.NewLimiter(rate.Limit(sendRatePerSecond), 5),
		logger:     logger,
	}
}

// SetPositionViewer wires the source for /status once the monitor exists.
func (b *Bot) SetPositionViewer(v PositionViewer) { b.positions = v }

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				b.logger.Info("Telegram bot stopped")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					go b.handleCommand(ctx, update.Message)
				} else if update.CallbackQuery != nil {
					go b.handleCallbackQuery(ctx, update.CallbackQuery)
				}
			}
		}
	}()
}

// SendAlert posts the alert with its action keyboard and returns the
// message id.
func (b *Bot) SendAlert(ctx context.Context, user *domain.User, alert *domain.StoredAlert) (int, error) {
	msg := tgbotapi.NewMessage(user.TelegramID, FormatAlert(alert))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = AlertKeyboard(alert)

	sent, err := b.send(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("telegram send alert: %w", err)
	}
	return sent.MessageID, nil
}

func (b *Bot) SendRecap(ctx context.Context, user *domain.User, recap *domain.DailyRecap) error {
	msg := tgbotapi.NewMessage(user.TelegramID, FormatRecap(recap))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.send(ctx, msg); err != nil {
		return fmt.Errorf("telegram send recap: %w", err)
	}
	return nil
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.api.Send(c)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.send(ctx, msg); err != nil {
		b.logger.Error("Failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	b.logger.Debug("Command received", zap.String("command", m.Command()), zap.Int64("chat_id", chatID))

	switch m.Command() {
	case "start":
		name := "trader"
		if m.From != nil && m.From.FirstName != "" {
			name = m.From.FirstName
		}
		b.reply(ctx, chatID, WelcomeMessage(name, b.maxRiskPct))
	case "help":
		b.reply(ctx, chatID, HelpMessage())
	case "score":
		b.replyScore(ctx, chatID, m.From)
	case "status":
		user, ok := b.lookupUser(ctx, chatID, m.From)
		if !ok {
			return
		}
		var (
			view usecase.UserView
			seen bool
		)
		if b.positions != nil {
			view, seen = b.positions.View(user.ID)
		}
		b.reply(ctx, chatID, FormatStatus(view, seen))
	default:
		b.reply(ctx, chatID, "Unknown command. Use /help to see what I can do.")
	}
}

func (b *Bot) replyScore(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, ok := b.lookupUser(ctx, chatID, from)
	if !ok {
		return
	}
	score, err := b.scores.Score(ctx, user.ID)
	if err != nil {
		b.logger.Error("Score lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		b.reply(ctx, chatID, "⚠️ Error fetching score. Try again later.")
		return
	}
	b.reply(ctx, chatID, FormatScore(score))
}

func (b *Bot) lookupUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*domain.User, bool) {
	if from == nil {
		return nil, false
	}
	user, err := b.users.GetUserByTelegramID(ctx, from.ID)
	if errors.Is(err, domain.ErrNotFound) {
		b.reply(ctx, chatID, "❌ User not found. Register your API keys first.")
		return nil, false
	}
	if err != nil {
		b.logger.Error("User lookup failed", zap.Int64("telegram_id", from.ID), zap.Error(err))
		b.reply(ctx, chatID, "⚠️ Something went wrong. Try again later.")
		return nil, false
	}
	return user, true
}

func (b *Bot) handleCallbackQuery(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}
	if q.Message == nil || q.From == nil {
		return
	}

	response := b.callbackResponse(ctx, q)

	text := q.Message.Text + "\n\n" + response
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	if _, err := b.send(ctx, edit); err != nil {
		b.logger.Error("Failed to edit alert message", zap.Int("message_id", q.Message.MessageID), zap.Error(err))
	}
}

func (b *Bot) callbackResponse(ctx context.Context, q *tgbotapi.CallbackQuery) string {
	action, rowID, err := parseCallbackData(q.Data)
	if err != nil {
		b.logger.Warn("Ignoring callback", zap.Error(err))
		return "⚠️ Error processing action"
	}

	res, err := b.actions.HandleAction(ctx, q.From.ID, rowID, action)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return "❌ Alert not found"
	case errors.Is(err, domain.ErrAlertNotOwned):
		return "❌ This alert belongs to another account"
	default:
		b.logger.Error("Action failed", zap.Int64("alert_row_id", rowID), zap.String("action", string(action)), zap.Error(err))
		return "⚠️ Error processing action"
	}

	if res.Action == domain.ActionViewStats {
		go b.replyScore(ctx, q.Message.Chat.ID, q.From)
	}
	return res.Response
}
