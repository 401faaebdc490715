package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fotosito/internal/ledger"
	"fotosito/internal/locations"
	"fotosito/internal/models"
)

// handlePhoto starts (or restarts) the flow: the largest photo size
// becomes the pending submission and the location keyboard is shown.
// A photo sent mid-conversation simply replaces the previous pending
// one; nothing has been written for it yet, so nothing is orphaned.
func (b *Bot) handlePhoto(message *tgbotapi.Message) {
	userID := message.From.ID

	// Telegram sends several sizes of the same photo; keep the largest
	photo := message.Photo[len(message.Photo)-1]
	taken := b.now()

	sub := &models.Submission{
		ID:       uuid.New(),
		FileID:   photo.FileID,
		Filename: buildFilename(message.From, taken),
		TakenAt:  taken,
	}

	b.setSession(userID, &Session{
		State:   StateAwaitingLocation,
		Pending: sub,
	})

	b.logger.Info("Photo received",
		zap.String("submission_id", sub.ID.String()),
		zap.Int64("user_id", userID),
		zap.String("filename", sub.Filename),
	)

	msg := tgbotapi.NewMessage(message.Chat.ID, "🏷️ Selecciona frente/sector:")
	msg.ReplyMarkup = locationKeyboard()
	b.sendMessage(msg)
}

// buildFilename generates <user-handle>_<user-id>_<timestamp>.jpg,
// unique per user per second.
func buildFilename(user *tgbotapi.User, taken time.Time) string {
	safeUser := user.UserName
	if safeUser == "" {
		safeUser = fmt.Sprintf("user_%d", user.ID)
	}
	return fmt.Sprintf("%s_%d_%s.jpg", safeUser, user.ID, taken.Format(ledger.TimeLayout))
}

// locationKeyboard lays the six codes out as a fixed 3x2 grid, one
// row per work front.
func locationKeyboard() tgbotapi.InlineKeyboardMarkup {
	codes := locations.Codes()

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i+1 < len(codes); i += 2 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(codes[i], codes[i]),
			tgbotapi.NewInlineKeyboardButtonData(codes[i+1], codes[i+1]),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
