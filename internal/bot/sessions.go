package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// session returns the user's session, or nil if none exists.
func (b *Bot) session(userID int64) *Session {
	b.sessionsMu.RLock()
	defer b.sessionsMu.RUnlock()
	return b.sessions[userID]
}

// setSession stores (or replaces) the user's session.
func (b *Bot) setSession(userID int64, s *Session) {
	s.UpdatedAt = b.now()
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	b.sessions[userID] = s
}

// clearSession is the terminal transition: the pending submission is
// dropped and the user is back to awaiting a photo.
func (b *Bot) clearSession(userID int64) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	delete(b.sessions, userID)
}

// StartSessionSweeper evicts sessions idle longer than the configured
// TTL, so an abandoned photo cannot be committed against a stale
// keyboard hours later. Runs until ctx is cancelled.
func (b *Bot) StartSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.sweepSessions()
			}
		}
	}()
}

func (b *Bot) sweepSessions() {
	cutoff := b.now().Add(-b.sessionTTL)

	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	for userID, s := range b.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(b.sessions, userID)
			b.logger.Info("Evicted idle session", zap.Int64("user_id", userID))
		}
	}
}
