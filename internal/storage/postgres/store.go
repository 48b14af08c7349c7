// Package postgres stores traveler records in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/holocons/waypoints/internal/traveler"
)

const schema = `CREATE TABLE IF NOT EXISTS travelers (
	user_id TEXT PRIMARY KEY,
	tokens  INTEGER NOT NULL,
	record  JSONB NOT NULL
)`

// Store is a traveler.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and creates the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Load(ctx context.Context) (map[string]traveler.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, record FROM travelers`)
	if err != nil {
		return nil, fmt.Errorf("query travelers: %w", err)
	}
	defer rows.Close()

	records := make(map[string]traveler.Record)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan traveler: %w", err)
		}
		var rec traveler.Record
		if err := json.Unmarshal(data, &rec); err != nil {
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

// Save replaces the table contents with records in one transaction.
func (s *Store) Save(ctx context.Context, records map[string]traveler.Record) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM travelers`); err != nil {
			return fmt.Errorf("clear travelers: %w", err)
		}
		batch := &pgx.Batch{}
		for id, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode traveler %s: %w", id, err)
			}
			batch.Queue(`INSERT INTO travelers (user_id, tokens, record) VALUES ($1, $2, $3::jsonb)`,
				id, rec.Tokens, string(data))
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert travelers: %w", err)
		}
		return nil
	})
}
