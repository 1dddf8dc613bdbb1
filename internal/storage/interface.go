package storage

import (
	"context"
	"errors"
)

var ErrorNotFound = errors.New("not found")

// Storage is a flat key-value slot store. Values are opaque strings,
// callers own the encoding.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
