package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fotosito/internal/ledger/stubs"
	"fotosito/internal/remote"
	"fotosito/internal/store"
)

// Note: We can't easily mock tgbotapi.BotAPI, so tests focus on the
// state machine and the commit path without sending Telegram messages.

var testClock = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) (*Bot, *stubs.MockLedger, *store.Local) {
	t.Helper()

	local, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	led := stubs.NewMockLedger()

	b := &Bot{
		api:          nil, // Not needed for internal logic tests
		store:        local,
		ledger:       led,
		allowedUsers: map[int64]bool{},
		sessions:     make(map[int64]*Session),
		sessionTTL:   30 * time.Minute,
		now:          func() time.Time { return testClock },
		logger:       zap.NewNop(), // Use nop logger for tests
	}
	b.download = func(ctx context.Context, fileID string) ([]byte, error) {
		return []byte("jpeg bytes"), nil
	}
	return b, led, local
}

func photoMessage(userID int64, username string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:  &tgbotapi.User{ID: userID, UserName: username},
		Chat:  &tgbotapi.Chat{ID: 456},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "file-1"}},
	}
}

func locationCallback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 456}},
		Data:    data,
	}
}

type stubUploader struct {
	err   error
	calls int
	path  string
}

func (u *stubUploader) Upload(ctx context.Context, localPath, folder, filename string) error {
	u.calls++
	u.path = localPath
	return u.err
}

func TestBot_PhotoStartsConversation(t *testing.T) {
	b, _, _ := newTestBot(t)

	b.handleMessage(photoMessage(7, "ana"))

	session := b.session(7)
	if session == nil {
		t.Fatal("Expected session to be created")
	}
	if session.State != StateAwaitingLocation {
		t.Errorf("Expected StateAwaitingLocation, got %v", session.State)
	}
	if session.Pending == nil {
		t.Fatal("Expected a pending submission")
	}
	if session.Pending.FileID != "file-1" {
		t.Errorf("Expected the largest photo size to be kept, got %q", session.Pending.FileID)
	}
	if session.Pending.Filename != "ana_7_2024-01-01 10-00-00.jpg" {
		t.Errorf("Unexpected filename %q", session.Pending.Filename)
	}
}

func TestBot_FullSubmissionScenario(t *testing.T) {
	b, led, local := newTestBot(t)

	b.handleMessage(photoMessage(7, "ana"))
	b.handleCallbackQuery(locationCallback(7, "BR-OR"))

	// The file landed under <root>/BR-OR/ with the generated name
	path := filepath.Join(local.Root(), "BR-OR", "ana_7_2024-01-01 10-00-00.jpg")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected stored file at %s: %v", path, err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("Stored file has wrong content: %q", data)
	}

	// Exactly one ledger row matching the file
	records := led.Records()
	if len(records) != 1 {
		t.Fatalf("Expected 1 ledger record, got %d", len(records))
	}
	rec := records[0]
	if rec.Filename != "ana_7_2024-01-01 10-00-00.jpg" {
		t.Errorf("Unexpected ledger filename %q", rec.Filename)
	}
	if rec.Group != "BREMEN" {
		t.Errorf("Expected group BREMEN, got %q", rec.Group)
	}
	if rec.Code != "BR-OR" {
		t.Errorf("Expected code BR-OR, got %q", rec.Code)
	}
	if !rec.Taken.Equal(testClock) {
		t.Errorf("Unexpected timestamp %v", rec.Taken)
	}

	// Terminal transition clears the session
	if b.session(7) != nil {
		t.Error("Expected session to be cleared after commit")
	}
}

func TestBot_InvalidButtonKeepsState(t *testing.T) {
	b, led, local := newTestBot(t)

	b.handleMessage(photoMessage(7, "ana"))
	b.handleCallbackQuery(locationCallback(7, "NOT-A-CODE"))

	session := b.session(7)
	if session == nil || session.State != StateAwaitingLocation {
		t.Error("Expected to remain awaiting a location")
	}
	if len(led.Records()) != 0 {
		t.Error("Expected no ledger mutation for an invalid selection")
	}
	assertNoPhotosStored(t, local)
}

func TestBot_StaleCallbackNoMutation(t *testing.T) {
	b, led, local := newTestBot(t)

	// Valid code, but no photo was ever sent
	b.handleCallbackQuery(locationCallback(7, "BR-OR"))

	if b.session(7) != nil {
		t.Error("Expected a stale callback to end in the terminal state")
	}
	if len(led.Records()) != 0 {
		t.Error("Expected no ledger mutation for a stale callback")
	}
	assertNoPhotosStored(t, local)
}

func TestBot_ResendPhotoReplacesPending(t *testing.T) {
	b, led, local := newTestBot(t)

	b.handleMessage(photoMessage(7, "ana"))
	first := b.session(7).Pending

	// A second photo mid-conversation restarts the flow
	second := photoMessage(7, "ana")
	second.Photo = []tgbotapi.PhotoSize{{FileID: "file-2"}}
	b.handleMessage(second)

	session := b.session(7)
	if session.Pending.ID == first.ID {
		t.Error("Expected the pending submission to be replaced")
	}
	if session.Pending.FileID != "file-2" {
		t.Errorf("Expected the new photo to be pending, got %q", session.Pending.FileID)
	}

	// Committing now writes exactly one file: no orphan for the
	// discarded submission
	b.handleCallbackQuery(locationCallback(7, "TALL-OR"))
	if len(led.Records()) != 1 {
		t.Fatalf("Expected 1 ledger record, got %d", len(led.Records()))
	}
	entries, err := os.ReadDir(filepath.Join(local.Root(), "TALL-OR"))
	if err != nil {
		t.Fatalf("Failed to read storage dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected exactly 1 stored file, got %d", len(entries))
	}
}

func TestBot_CancelClearsSession(t *testing.T) {
	b, led, _ := newTestBot(t)

	b.handleMessage(photoMessage(7, "ana"))

	cancel := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7, UserName: "ana"},
		Chat:     &tgbotapi.Chat{ID: 456},
		Text:     "/cancel",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}},
	}
	b.handleMessage(cancel)

	if b.session(7) != nil {
		t.Error("Expected session to be cleared by /cancel")
	}

	// A callback arriving after the cancel is stale
	b.handleCallbackQuery(locationCallback(7, "BR-OR"))
	if len(led.Records()) != 0 {
		t.Error("Expected no ledger mutation after cancellation")
	}
}

func TestBot_UploadFailureStillCommits(t *testing.T) {
	b, led, local := newTestBot(t)
	up := &stubUploader{err: &remote.UploadError{Status: 500, Body: "boom"}}
	b.uploader = up

	b.handleMessage(photoMessage(7, "ana"))
	b.handleCallbackQuery(locationCallback(7, "LOE-OR"))

	if up.calls != 1 {
		t.Fatalf("Expected 1 upload attempt, got %d", up.calls)
	}

	// Local file and ledger row both exist despite the remote failure
	if _, err := os.Stat(filepath.Join(local.Root(), "LOE-OR", "ana_7_2024-01-01 10-00-00.jpg")); err != nil {
		t.Errorf("Expected local file to survive upload failure: %v", err)
	}
	if len(led.Records()) != 1 {
		t.Errorf("Expected ledger row to survive upload failure, got %d rows", len(led.Records()))
	}

	// Conversation reached its terminal success state
	if b.session(7) != nil {
		t.Error("Expected session to be cleared")
	}
}

func TestBot_UploadReceivesStoredPath(t *testing.T) {
	b, _, local := newTestBot(t)
	up := &stubUploader{}
	b.uploader = up

	b.handleMessage(photoMessage(7, "ana"))
	b.handleCallbackQuery(locationCallback(7, "BR-PON"))

	want := filepath.Join(local.Root(), "BR-PON", "ana_7_2024-01-01 10-00-00.jpg")
	if up.path != want {
		t.Errorf("Uploader got path %q, want %q", up.path, want)
	}
}

func TestBot_DownloadFailureWritesNothing(t *testing.T) {
	b, led, local := newTestBot(t)
	b.download = func(ctx context.Context, fileID string) ([]byte, error) {
		return nil, os.ErrDeadlineExceeded
	}

	b.handleMessage(photoMessage(7, "ana"))
	b.handleCallbackQuery(locationCallback(7, "BR-OR"))

	if len(led.Records()) != 0 {
		t.Error("Expected no ledger row when the download fails")
	}
	assertNoPhotosStored(t, local)
}

func TestBot_EmptyDownloadWritesNoLedgerRow(t *testing.T) {
	// A zero-length transfer must fail the save and leave no ledger row
	b, led, _ := newTestBot(t)
	b.download = func(ctx context.Context, fileID string) ([]byte, error) {
		return nil, nil
	}

	b.handleMessage(photoMessage(7, "ana"))
	b.handleCallbackQuery(locationCallback(7, "BR-OR"))

	if len(led.Records()) != 0 {
		t.Error("Expected no ledger row for an empty photo")
	}
}

func TestBot_UsernameFallback(t *testing.T) {
	b, _, _ := newTestBot(t)

	b.handleMessage(photoMessage(99, ""))

	session := b.session(99)
	if session == nil || session.Pending == nil {
		t.Fatal("Expected a pending submission")
	}
	if session.Pending.Filename != "user_99_99_2024-01-01 10-00-00.jpg" {
		t.Errorf("Unexpected fallback filename %q", session.Pending.Filename)
	}
}

func TestBot_UnauthorizedUserIsRejected(t *testing.T) {
	b, led, _ := newTestBot(t)
	b.allowedUsers = map[int64]bool{1: true}

	b.HandleUpdate(tgbotapi.Update{Message: photoMessage(7, "ana")})

	if b.session(7) != nil {
		t.Error("Expected no session for an unauthorized user")
	}

	b.HandleUpdate(tgbotapi.Update{CallbackQuery: locationCallback(7, "BR-OR")})
	if len(led.Records()) != 0 {
		t.Error("Expected no ledger mutation from an unauthorized user")
	}
}

func TestBot_EmptyAllowlistKeepsBotOpen(t *testing.T) {
	b, _, _ := newTestBot(t)

	b.HandleUpdate(tgbotapi.Update{Message: photoMessage(7, "ana")})

	if b.session(7) == nil {
		t.Error("Expected an empty allowlist to admit everyone")
	}
}

func TestBot_SweeperEvictsIdleSessions(t *testing.T) {
	b, _, _ := newTestBot(t)

	b.handleMessage(photoMessage(7, "ana"))

	// Not yet idle long enough
	b.sweepSessions()
	if b.session(7) == nil {
		t.Fatal("Expected fresh session to survive the sweep")
	}

	// Advance the clock past the TTL
	testNow := testClock.Add(time.Hour)
	b.now = func() time.Time { return testNow }
	b.sweepSessions()

	if b.session(7) != nil {
		t.Error("Expected idle session to be evicted")
	}
}

func TestBot_PanicRecovery(t *testing.T) {
	b, _, _ := newTestBot(t)
	b.ledger = nil // /last will dereference a nil ledger

	message := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7, UserName: "ana"},
		Chat:     &tgbotapi.Chat{ID: 456},
		Text:     "/last",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("handleMessage panicked: %v", r)
		}
	}()

	b.handleMessage(message)
}

func assertNoPhotosStored(t *testing.T, local *store.Local) {
	t.Helper()
	entries, err := os.ReadDir(local.Root())
	if err != nil {
		t.Fatalf("Failed to read storage root: %v", err)
	}
	for _, e := range entries {
		sub, err := os.ReadDir(filepath.Join(local.Root(), e.Name()))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", e.Name(), err)
		}
		if len(sub) != 0 {
			t.Errorf("Expected no stored photos, found files under %s", e.Name())
		}
	}
}
