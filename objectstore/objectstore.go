// Package objectstore persists drawing payloads and thumbnails in a
// bucket-backed object store. The Client wraps any Backend with a fixed
// retry/backoff policy and exposes drawing-level operations; backends live in
// the s3, minio and filesystem subpackages.
package objectstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is wrapped by backends when no object exists at a key.
	ErrNotFound = errors.New("object not found")

	// ErrNoData is returned when a download succeeds but the backend hands
	// back an empty body.
	ErrNoData = errors.New("no data received")
)

// Backend is the minimal contract an object store must satisfy. Any
// S3-compatible service or a local filesystem shim can implement it; the
// Client's logic is identical across backends.
type Backend interface {
	// Put writes data under key, creating or overwriting the object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the full object content, wrapping ErrNotFound when the
	// key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Remove deletes the named objects. Missing keys are not an error.
	Remove(ctx context.Context, keys []string) error

	// List returns the names of objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// PublicURL returns the browser-accessible URL for a key. It is a pure
	// function of the key, no network call involved.
	PublicURL(key string) string
}

// UploadResult reports where a successful upload landed.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// DeleteResult carries the per-object outcome of a best-effort drawing
// deletion. A nil field means that object's delete succeeded (or the object
// was already gone).
type DeleteResult struct {
	DataErr      error
	ThumbnailErr error
}

// Complete reports whether both objects were removed.
func (r DeleteResult) Complete() bool {
	return r.DataErr == nil && r.ThumbnailErr == nil
}
