// Package sqlite stores traveler records in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/holocons/waypoints/internal/traveler"
)

const schema = `CREATE TABLE IF NOT EXISTS travelers (
	user_id TEXT PRIMARY KEY,
	record  TEXT NOT NULL
)`

// Store is a traveler.Store backed by one SQLite table.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and creates the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context) (map[string]traveler.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT user_id, record FROM travelers`)
	if err != nil {
		return nil, fmt.Errorf("query travelers: %w", err)
	}
	defer rows.Close()

	records := make(map[string]traveler.Record)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan traveler: %w", err)
		}
		var rec traveler.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode traveler %s: %w", id, err)
		}
		records[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate travelers: %w", err)
	}
	if len(records) == 0 {
		return nil, traveler.ErrNoSnapshot
	}
	return records, nil
}

// Save replaces every row with records in one transaction.
func (s *Store) Save(ctx context.Context, records map[string]traveler.Record) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM travelers`); err != nil {
		return fmt.Errorf("clear travelers: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO travelers (user_id, record) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode traveler %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(data)); err != nil {
			return fmt.Errorf("insert traveler %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
