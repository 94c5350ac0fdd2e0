package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	appconfig "stockflow/config"
)

// ErrNotFound is returned by Read when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the object store the pipeline reads raw files from and writes
// every output table to. Keys are slash separated and relative to the store
// root.
type Store interface {
	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// URI renders key the way external tools address it.
	URI(key string) string
}

// New builds the store selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *appconfig.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "local", "":
		return NewLocalStore(cfg.Storage.Local.Root)
	case "s3":
		return NewS3Store(ctx, cfg.Storage.S3, cfg.Storage.Timeout)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Join builds a store key from path elements.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

// dirPrefix makes prefix match whole path segments only, so that listing
// "processed/daily_stocks" does not pick up "processed/daily_stocks_csv".
func dirPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
