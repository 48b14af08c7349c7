// Package redis stores traveler records in a Redis hash.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/holocons/waypoints/internal/traveler"
)

// DefaultKey is the hash holding one field per user.
const DefaultKey = "waypoints:travelers"

// Store is a traveler.Store backed by a Redis hash.
type Store struct {
	client *redis.Client
	key    string
}

// New returns a store writing to key on client.
func New(client *redis.Client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) Load(ctx context.Context) (map[string]traveler.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read travelers: %w", err)
	}
	if len(fields) == 0 {
		return nil, traveler.ErrNoSnapshot
	}
	records := make(map[string]traveler.Record, len(fields))
	for id, data := range fields {
		var rec traveler.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode traveler %s: %w", id, err)
		}
		records[id] = rec
	}
	return records, nil
}

// Save replaces the hash atomically.
func (s *Store) Save(ctx context.Context, records map[string]traveler.Record) error {
	values := make(map[string]any, len(records))
	for id, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode traveler %s: %w", id, err)
		}
		values[id] = string(data)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write travelers: %w", err)
	}
	return nil
}
