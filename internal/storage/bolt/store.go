// Package bolt stores traveler records in a local bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/holocons/waypoints/internal/traveler"
)

var bucket = []byte("travelers")

// Store is a traveler.Store backed by one bbolt bucket.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (map[string]traveler.Record, error) {
	records := make(map[string]traveler.Record)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return traveler.ErrNoSnapshot
		}
		return b.ForEach(func(k, v []byte) error {
			var rec traveler.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode traveler %s: %w", k, err)
			}
			records[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, traveler.ErrNoSnapshot
	}
	return records, nil
}

// Save replaces the bucket contents with records in one transaction.
func (s *Store) Save(ctx context.Context, records map[string]traveler.Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucket) != nil {
			if err := tx.DeleteBucket(bucket); err != nil {
				return fmt.Errorf("reset bucket: %w", err)
			}
		}
		b, err := tx.CreateBucket(bucket)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		for id, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode traveler %s: %w", id, err)
			}
			if err := b.Put([]byte(id), data); err != nil {
				return fmt.Errorf("put traveler %s: %w", id, err)
			}
		}
		return nil
	})
}
