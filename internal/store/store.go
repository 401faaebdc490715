package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Local writes received photos under <root>/<location-code>/.
type Local struct {
	root string
}

// NewLocal creates the storage root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

// Root returns the storage root directory.
func (l *Local) Root() string {
	return l.root
}

// Dir returns the directory photos for the given code land in.
func (l *Local) Dir(code string) string {
	return filepath.Join(l.root, code)
}

// Save writes the photo bytes to <root>/<code>/<filename> and returns
// the written path. The result is re-stated afterwards: a missing or
// zero-length file fails the save, so a silently truncated transfer
// never produces a ledger entry pointing at garbage.
func (l *Local) Save(code, filename string, data []byte) (string, error) {
	dir := l.Dir(code)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("photo missing after write: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("photo %s was written empty", path)
	}

	return path, nil
}
