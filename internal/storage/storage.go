// Package storage holds uploaded source files between upload and ingestion.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("file not found")

// Storage keys are slash-separated relative paths such as
// "<tenant>/<uuid>.pdf". Delete of a missing key is not an error.
type Storage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
