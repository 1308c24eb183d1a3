package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/drama-high/internal/config"
)

// Open returns the store selected by STORAGE. Redis stores are waited on
// until they answer or ctx ends.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Storage {
	case "redis":
		store, err := NewRedisStore(cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.WaitForConnection(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "file":
		store := NewFileStore(cfg.SaveDir, logger)
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("invalid storage %q", cfg.Storage)
	}
}
