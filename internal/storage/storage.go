// Package storage persists the small amount of client state that must
// survive between runs: the session and the staged cart snapshot. It plays
// the part browser local storage plays for a web client.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwikikusuma/shoping-storefront/pkg/config"
)

var ErrNotFound = errors.New("storage: key not found")

// Canonical keys. Nothing else identifies an active session.
const (
	KeySession      = "session"
	KeyCartSnapshot = "cart_snapshot"
)

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (KV, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path, cfg.Namespace)
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.Namespace)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
