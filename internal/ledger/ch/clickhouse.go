package ch

import (
	"context"
	"crypto/tls"
	"fmt"

	"fotosito/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Mirror copies ledger rows into ClickHouse so submissions can be
// queried without parsing the CSV file. It is an optional secondary
// sink: the CSV ledger stays authoritative.
type Mirror struct {
	conn clickhouse.Conn
}

// New creates a new ClickHouse mirror connection.
func New(host string, port int, database, user, password string, useTLS bool) (*Mirror, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Mirror{conn: conn}, nil
}

// Append inserts one ledger row. The photo_log table is managed via
// migrations (see migrations/ directory).
func (m *Mirror) Append(ctx context.Context, rec models.Record) error {
	err := m.conn.Exec(ctx, `INSERT INTO photo_log (archivo, frente, ubicacion, fecha) VALUES (?, ?, ?, ?)`,
		rec.Filename, rec.Group, rec.Code, rec.Taken)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}
	return nil
}

// LastRecords returns the last N rows, newest first.
func (m *Mirror) LastRecords(ctx context.Context, limit int) ([]models.Record, error) {
	rows, err := m.conn.Query(ctx, `SELECT archivo, frente, ubicacion, fecha FROM photo_log ORDER BY fecha DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger rows: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.Filename, &rec.Group, &rec.Code, &rec.Taken); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the ClickHouse connection.
func (m *Mirror) Close() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
