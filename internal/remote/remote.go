// Package remote mirrors committed photos to a cloud backend.
//
// Uploads are best-effort: a failure is reported to the caller so the
// user can be warned, but it never rolls back the local save or the
// ledger append. There is no retry queue.
package remote

import (
	"context"
	"fmt"

	"fotosito/internal/config"

	"go.uber.org/zap"
)

// Uploader pushes a locally stored photo to the remote mirror.
type Uploader interface {
	// Upload sends the file at localPath to <remote root>/<folder>/<filename>.
	Upload(ctx context.Context, localPath, folder, filename string) error
}

// UploadError is returned when the remote side answered with a
// non-2xx status. Callers treat it as a warning, not a failure.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("remote upload rejected with status %d: %s", e.Status, e.Body)
}

// NewFromConfig builds the configured uploader. Returns nil when no
// remote backend is configured.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (Uploader, error) {
	switch cfg.RemoteBackend {
	case config.RemoteNone:
		return nil, nil
	case config.RemoteGraph:
		return NewGraph(cfg, logger)
	case config.RemoteS3:
		return NewS3(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown remote backend: %s", cfg.RemoteBackend)
	}
}
