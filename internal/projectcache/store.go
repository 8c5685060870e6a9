package projectcache

import (
	"fmt"
	"log/slog"
	"strings"

	"recomo/internal/config"
)

// KeyValueStore is string-keyed persistent storage.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Lister is implemented by stores that can enumerate their contents.
type Lister interface {
	Entries() (map[string]string, error)
}

// Open constructs the store selected by cfg.Cache.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (KeyValueStore, error) {
	if cfg == nil {
		return NewMemoryStore(), nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)) {
	case "", "json":
		return NewFileStore(cfg.Cache.Path, logger), nil
	case "sqlite":
		return OpenSQLiteStore(cfg.Cache.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}

// Close releases store resources when the store holds any.
func Close(store KeyValueStore) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
