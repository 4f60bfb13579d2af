package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is the envelope version written by SetJSON.
const SchemaVersion = 1

var ErrUnsupportedSchema = errors.New("unsupported schema version")

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// GetJSON decodes the document stored under key into v. Values written
// before the envelope existed are decoded as-is.
func GetJSON(ctx context.Context, s Store, key Key, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	data := raw
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		if env.Version > SchemaVersion {
			return false, fmt.Errorf("%s: %w: %d", key, ErrUnsupportedSchema, env.Version)
		}
		if env.Data != nil {
			data = env.Data
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v inside a versioned envelope and stores it under key.
func SetJSON(ctx context.Context, s Store, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{Version: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
