package traveler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned by Store.Load when nothing was ever saved.
var ErrNoSnapshot = errors.New("no traveler snapshot")

// Store persists every traveler keyed by the text form of the user id.
type Store interface {
	Load(ctx context.Context) (map[string]Record, error)
	Save(ctx context.Context, records map[string]Record) error
}

// MemoryStore keeps the last snapshot in process memory.
type MemoryStore struct {
	data []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (map[string]Record, error) {
	if s.data == nil {
		return nil, ErrNoSnapshot
	}
	var records map[string]Record
	if err := json.Unmarshal(s.data, &records); err != nil {
		return nil, fmt.Errorf("decode travelers: %w", err)
	}
	return records, nil
}

func (s *MemoryStore) Save(ctx context.Context, records map[string]Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode travelers: %w", err)
	}
	s.data = data
	return nil
}
