package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fotosito/internal/ledger"
	"fotosito/internal/models"
	"fotosito/internal/remote"
	"fotosito/internal/store"
)

// State enumerates the conversation states of the photo-intake form.
type State int

const (
	// StateAwaitingPhoto is the initial state. It is implicit: a user
	// with no session is awaiting a photo.
	StateAwaitingPhoto State = iota
	// StateAwaitingLocation means a photo is pending and the location
	// keyboard is showing.
	StateAwaitingLocation
)

// Session tracks one user's in-flight submission. Terminal transitions
// delete the session instead of storing a terminal state.
type Session struct {
	State     State
	Pending   *models.Submission
	UpdatedAt time.Time
}

// Downloader fetches the photo bytes for a Telegram file ID.
type Downloader func(ctx context.Context, fileID string) ([]byte, error)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	store        *store.Local
	ledger       ledger.Ledger
	mirror       ledger.Ledger   // optional ClickHouse mirror, nil when disabled
	uploader     remote.Uploader // optional remote mirror, nil when disabled
	allowedUsers map[int64]bool  // empty map means no allowlist
	sessions     map[int64]*Session
	sessionsMu   sync.RWMutex
	sessionTTL   time.Duration
	download     Downloader
	now          func() time.Time
	logger       *zap.Logger
}
