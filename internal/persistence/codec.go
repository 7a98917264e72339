package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a stored document cannot be decoded
var ErrCorrupt = errors.New("persisted value is corrupt")

// SaveJSON encodes v and stores it under key
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Save(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// LoadJSON decodes the document under key into v. It returns ErrNotFound
// when nothing is stored and ErrCorrupt when decoding fails.
func LoadJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return nil
}
