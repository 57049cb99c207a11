package service

import (
	"context"
	"io"
)

// ObjectStorage writes one object and reports bytes written as it goes.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader, onProgress func(written int64)) (string, error)
	Delete(ctx context.Context, url string) error
	Close() error
}
