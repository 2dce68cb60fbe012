package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download and Size for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the blob operations used for uploaded documents
type ObjectStorage interface {
	// Upload stores the reader's content under key and returns the number of bytes written
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (int64, error)

	// Download opens the object stored under key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Size returns the stored object's length in bytes
	Size(ctx context.Context, key string) (int64, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
