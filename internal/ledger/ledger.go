package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fotosito/internal/models"
)

// Header is the exact first line every ledger file must carry.
const Header = "Archivo,Frente,Ubicacion,FechaHora"

// TimeLayout is the timestamp format used in filenames and ledger rows.
// Dashes instead of colons keep the value filesystem-safe.
const TimeLayout = "2006-01-02 15-04-05"

// Ledger records completed photo submissions.
type Ledger interface {
	Append(ctx context.Context, rec models.Record) error
	LastRecords(ctx context.Context, limit int) ([]models.Record, error)
	Close() error
}

// CSV is the primary, file-backed ledger. Rows are written as raw
// comma-joined lines (no quoting): the on-disk format predates this
// program and filenames and codes never contain commas.
//
// Appends are serialized behind a process-local mutex. Multiple
// processes writing the same file are still uncoordinated; the bot is
// operated by one person at a time, so this is accepted.
type CSV struct {
	path string
	mu   sync.Mutex
}

// NewCSV opens (and if needed creates or heals) the ledger file at path.
func NewCSV(path string) (*CSV, error) {
	c := &CSV{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	if err := c.ensureHeader(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureHeader guarantees the file exists and starts with Header.
// A file whose first line does not match is moved aside to a
// timestamped backup and replaced with a fresh header-only file, so a
// schema drift never corrupts appended rows. Safe to call repeatedly.
func (c *CSV) ensureHeader() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return c.writeHeader()
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	first, _, _ := strings.Cut(string(data), "\n")
	if strings.TrimRight(first, "\r") == Header {
		return nil
	}

	backup := fmt.Sprintf("%s.bak-%d", c.path, time.Now().Unix())
	if err := os.Rename(c.path, backup); err != nil {
		return fmt.Errorf("failed to back up ledger with stale header: %w", err)
	}
	return c.writeHeader()
}

func (c *CSV) writeHeader() error {
	if err := os.WriteFile(c.path, []byte(Header+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	return nil
}

// Append writes one row for a completed submission.
func (c *CSV) Append(ctx context.Context, rec models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s,%s,%s,%s\n", rec.Filename, rec.Group, rec.Code, rec.Taken.Format(TimeLayout))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append ledger row: %w", err)
	}
	return nil
}

// LastRecords returns up to limit rows, newest first.
func (c *CSV) LastRecords(ctx context.Context, limit int) ([]models.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	var records []models.Record
	for i := len(lines) - 1; i >= 1 && len(records) < limit; i-- { // skip header at index 0
		line := strings.TrimRight(lines[i], "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 4)
		if len(parts) != 4 {
			continue
		}
		taken, err := time.Parse(TimeLayout, parts[3])
		if err != nil {
			continue
		}
		records = append(records, models.Record{
			Filename: parts[0],
			Group:    parts[1],
			Code:     parts[2],
			Taken:    taken,
		})
	}
	return records, nil
}

// Close is a no-op; the file is opened per append.
func (c *CSV) Close() error {
	return nil
}
