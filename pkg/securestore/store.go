package securestore

import (
	"context"
	"strings"
)

// Store persists string values under string keys.
// Retrieve returns ErrNotFound for unknown keys. Remove of an unknown key
// is not an error.
type Store interface {
	Store(ctx context.Context, key, value string) error
	Retrieve(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

func checkKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
