package stubs

import (
	"context"
	"sync"

	"fotosito/internal/models"
)

// MockLedger is an in-memory Ledger implementation for testing.
type MockLedger struct {
	mu      sync.RWMutex
	records []models.Record
}

// NewMockLedger creates a new mock ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{records: make([]models.Record, 0)}
}

// Append stores the record in memory.
func (m *MockLedger) Append(ctx context.Context, rec models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)
	return nil
}

// LastRecords returns up to limit records, newest first.
func (m *MockLedger) LastRecords(ctx context.Context, limit int) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Record
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Records returns a copy of everything appended so far, oldest first.
func (m *MockLedger) Records() []models.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Close does nothing for the mock ledger.
func (m *MockLedger) Close() error {
	return nil
}
