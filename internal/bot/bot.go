// Package bot presents today's review queue in Telegram and records outcomes
// from inline buttons.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/logger"
	"github.com/example/codecycle/pkg/models"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Engine is the review engine the bot presents
type Engine interface {
	BuildTodayQueue(ctx context.Context, user *models.User, now time.Time) (*models.TodayQueue, error)
	SubmitReview(ctx context.Context, user *models.User, slug string, outcome models.ReviewOutcome) (*models.SubmitResult, error)
	UpdateSettings(ctx context.Context, user *models.User, update *models.UpdateSettings) (*models.Settings, error)
	Stats(ctx context.Context, user *models.User, now time.Time) (*models.ReviewStats, error)
	Now() time.Time
}

// SessionResolver turns a web session token into its user
type SessionResolver interface {
	ResolveCurrentUser(ctx context.Context, token string) (*models.User, error)
}

// ChatUsers maps Telegram chats to users
type ChatUsers interface {
	GetByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	LinkTelegram(ctx context.Context, userID string, chatID int64) error
}

// messenger is the part of the Bot API the handlers use
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot application.
// It keeps no per-chat state: every reply is computed from the engine.
type Bot struct {
	api      messenger
	botAPI   *tgbotapi.BotAPI
	engine   Engine
	sessions SessionResolver
	users    ChatUsers
	config   *BotConfig
	log      *logger.Logger

	wg sync.WaitGroup
}

// New creates a new bot instance; it connects to Telegram on Start
func New(config *BotConfig, engine Engine, sessions SessionResolver, users ChatUsers, log *logger.Logger) (*Bot, error) {
	if config == nil || config.Token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{
		engine:   engine,
		sessions: sessions,
		users:    users,
		config:   config,
		log:      log.Component("bot"),
	}, nil
}

// Start authorizes with Telegram and handles updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.config.Token)
	if err != nil {
		return errors.Wrap(err, "unable to create bot")
	}
	b.botAPI = botAPI
	b.api = botAPI
	b.log.Info("authorized on telegram", "account", botAPI.Self.UserName)

	// Set up the update configuration
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout
	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(chatID int64, count int) error {
	if b.api == nil {
		return errors.New("bot is not started")
	}
	msg := tgbotapi.NewMessage(chatID, reminderText(count))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "▶️ Start review", CallbackData: callbackToday}}})
	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send reminder to chat %d", chatID)
	}
	b.log.Debug("reminder sent", "chat", chatID, "count", count)
	return nil
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update", "update", update.UpdateID, "panic", fmt.Sprint(r))
		}
	}()

	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil:
		b.reply(update.Message.Chat.ID, "I don't understand. Use /help to see the commands.")
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.log.Warn("failed to handle update", "update", update.UpdateID, "error", err)
	}
}

// reply sends a plain text message and logs a failed send
func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", "error", err)
	}
}
