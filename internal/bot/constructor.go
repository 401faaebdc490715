package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fotosito/internal/ledger"
	"fotosito/internal/remote"
	"fotosito/internal/store"
)

// Deps bundles the collaborators a Bot commits submissions through.
// Mirror and Uploader may be nil.
type Deps struct {
	Store    *store.Local
	Ledger   ledger.Ledger
	Mirror   ledger.Ledger
	Uploader remote.Uploader
}

// NewBot creates a new Telegram bot
func NewBot(token string, deps Deps, allowedUserIDs []int64, sessionTTL time.Duration, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := &Bot{
		api:          api,
		store:        deps.Store,
		ledger:       deps.Ledger,
		mirror:       deps.Mirror,
		uploader:     deps.Uploader,
		allowedUsers: allowedUsers,
		sessions:     make(map[int64]*Session),
		sessionTTL:   sessionTTL,
		now:          time.Now,
		logger:       logger,
	}
	b.download = b.downloadPhoto
	return b, nil
}

// GetAPI returns the bot API for testing
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}
