package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fotosito/internal/ledger"
)

// handleStart shows the usage message
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `👋 Envíame una foto.
Luego elige el frente/sector (solo una pregunta):
BR-OR, BR-PON, TALL-OR, TALL-PON, LOE-OR, LOE-PON.

/last - Últimas fotos registradas
/cancel - Cancelar el envío en curso`

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	b.sendMessage(msg)
}

// handleCancel clears any pending submission and ends the conversation
func (b *Bot) handleCancel(message *tgbotapi.Message) {
	b.clearSession(message.From.ID)
	msg := tgbotapi.NewMessage(message.Chat.ID, "🛑 Operación cancelada. Envía una foto para comenzar de nuevo.")
	b.sendMessage(msg)
}

// handleLast shows the last 10 ledger rows
func (b *Bot) handleLast(ctx context.Context, message *tgbotapi.Message) {
	records, err := b.ledger.LastRecords(ctx, 10)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("Error: %v", err))
		b.sendMessage(msg)
		return
	}

	if len(records) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Aún no hay fotos registradas.")
		b.sendMessage(msg)
		return
	}

	var text strings.Builder
	text.WriteString("Últimas fotos registradas:\n\n")
	for i, rec := range records {
		text.WriteString(fmt.Sprintf("%d. %s - %s/%s (%s)\n",
			i+1,
			rec.Taken.Format(ledger.TimeLayout),
			rec.Group,
			rec.Code,
			rec.Filename))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text.String())
	b.sendMessage(msg)
}
