// Package storage provides the key/value capability the client persists
// its state through. Keys and values are strings; callers encode their own
// values (JSON throughout this module).
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"summarai/internal/config"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Open builds the backend selected by cfg and wraps it so that failures
// degrade to in-memory state instead of surfacing to callers.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Resilient, error) {
	var (
		primary Store
		err     error
	)

	switch cfg.Storage {
	case config.StorageMemory:
		primary = NewMemory()
	case config.StorageFile:
		primary, err = OpenFile(cfg.StoragePath)
	case config.StorageSQLite:
		primary, err = OpenSQLite(ctx, cfg.StoragePath)
	case config.StorageRedis:
		primary, err = OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage)
	}
	if err != nil {
		return nil, err
	}

	return NewResilient(primary, logger), nil
}

func filterKeys(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
