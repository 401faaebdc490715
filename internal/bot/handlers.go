package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// HandleUpdate processes a single update, from polling or webhook.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	// Handle regular messages
	if update.Message != nil {
		userID := update.Message.From.ID
		if !b.isAllowed(userID) {
			b.logger.Warn("Unauthorized access attempt",
				zap.Int64("user_id", userID),
				zap.String("username", update.Message.From.UserName),
				zap.String("text", update.Message.Text),
			)
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, "No tienes permiso para usar este bot.")
			b.sendMessage(msg)
			return
		}
		b.handleMessage(update.Message)
	}

	// Handle callback queries (inline keyboard button clicks)
	if update.CallbackQuery != nil {
		userID := update.CallbackQuery.From.ID
		if !b.isAllowed(userID) {
			b.logger.Warn("Unauthorized callback query attempt",
				zap.Int64("user_id", userID),
				zap.String("username", update.CallbackQuery.From.UserName),
				zap.String("callback_data", update.CallbackQuery.Data),
			)
			return
		}
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

// isAllowed reports whether the user may talk to the bot. An empty
// allowlist keeps the bot open.
func (b *Bot) isAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || b.allowedUsers[userID]
}

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			msg := tgbotapi.NewMessage(message.Chat.ID, "Ocurrió un error procesando tu mensaje. Intenta de nuevo.")
			b.sendMessage(msg)
		}
	}()

	ctx := context.Background()

	// A photo restarts the flow from any state
	if len(message.Photo) > 0 {
		b.handlePhoto(message)
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStart(message)
		case "cancel":
			b.handleCancel(message)
		case "last":
			b.handleLast(ctx, message)
		default:
			msg := tgbotapi.NewMessage(message.Chat.ID, "Comando desconocido. Envíame una foto o usa /start.")
			b.sendMessage(msg)
		}
		return
	}

	// Free text outside the flow: nudge the user toward sending a photo
	if b.session(message.From.ID) == nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Envíame una foto para comenzar.")
		b.sendMessage(msg)
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	// Answer the callback query to remove the loading state
	if b.api != nil {
		callback := tgbotapi.NewCallback(query.ID, "")
		b.api.Request(callback)
	}

	b.handleLocationCallback(context.Background(), query)
}
