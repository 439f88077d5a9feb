package storage

import (
	"context"
	"io"
)

// Store persists uploaded reference images and returns a servable URL.
// Delete failures are logged and swallowed by callers; a dangling file never
// blocks the logical delete.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}
