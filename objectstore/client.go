package objectstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	maxAttempts      = 3
	baseRetryDelay   = 1000 * time.Millisecond
	jsonContentType  = "application/json"
	imageContentType = "image/png"
)

// dataURLPrefix matches the header of a base64 data URL, e.g.
// "data:image/png;base64,".
var dataURLPrefix = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,`)

// Client performs drawing-level operations against a Backend, retrying each
// storage primitive on failure. It holds no per-call state and is safe for
// concurrent use; construct one at startup and share it.
type Client struct {
	backend Backend

	// retry knobs, fixed in production and shortened in tests
	attempts int
	delay    time.Duration
}

// NewClient wraps backend with the standard retry policy of three attempts
// with exponential backoff (1s, then 2s).
func NewClient(backend Backend) *Client {
	return &Client{
		backend:  backend,
		attempts: maxAttempts,
		delay:    baseRetryDelay,
	}
}

// withRetry runs fn up to c.attempts times, sleeping delay*2^(k-1) between
// attempts. Every failure is retried regardless of kind; a permanent backend
// error costs the full retry budget, a deliberate simplicity trade-off.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		logrus.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
			"error":     lastErr.Error(),
		}).Warn("Storage operation attempt failed")

		if attempt < c.attempts {
			if err := sleep(ctx, c.delay<<(attempt-1)); err != nil {
				return fmt.Errorf("%s failed after %d attempts: %v", op, attempt, err)
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %v", op, c.attempts, lastErr)
}

// sleep blocks for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UploadDrawing serializes v as JSON and stores it under the drawing's data
// key. Repeated uploads under the same identifier overwrite the object.
func (c *Client) UploadDrawing(ctx context.Context, drawingID string, v interface{}) (*UploadResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal drawing %s: %v", drawingID, err)
	}
	key := DataKey(drawingID)
	if err := c.put(ctx, "upload drawing", key, data, jsonContentType); err != nil {
		return nil, err
	}
	return &UploadResult{Key: key, URL: c.backend.PublicURL(key)}, nil
}

// UploadThumbnail stores raw image bytes under the drawing's thumbnail key.
func (c *Client) UploadThumbnail(ctx context.Context, drawingID string, image []byte) (*UploadResult, error) {
	key := ThumbnailKey(drawingID)
	if err := c.put(ctx, "upload thumbnail", key, image, imageContentType); err != nil {
		return nil, err
	}
	return &UploadResult{Key: key, URL: c.backend.PublicURL(key)}, nil
}

// UploadThumbnailBase64 decodes a base64 string, optionally prefixed with a
// "data:image/...;base64," header, and stores the resulting bytes.
func (c *Client) UploadThumbnailBase64(ctx context.Context, drawingID, encoded string) (*UploadResult, error) {
	image, err := DecodeThumbnail(encoded)
	if err != nil {
		return nil, err
	}
	return c.UploadThumbnail(ctx, drawingID, image)
}

// DecodeThumbnail strips an optional data-URL header and base64-decodes the
// remainder.
func DecodeThumbnail(encoded string) ([]byte, error) {
	raw := dataURLPrefix.ReplaceAllString(encoded, "")
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail image: %v", err)
	}
	return image, nil
}

func (c *Client) put(ctx context.Context, op, key string, data []byte, contentType string) error {
	return c.withRetry(ctx, op, func() error {
		return c.backend.Put(ctx, key, data, contentType)
	})
}

// DownloadDrawing fetches a drawing's payload and returns it as raw JSON.
// A missing object is retried like any other failure before surfacing; stored
// content that is not valid JSON fails immediately since the fetch itself
// succeeded.
func (c *Client) DownloadDrawing(ctx context.Context, drawingID string) (json.RawMessage, error) {
	data, err := c.get(ctx, "download drawing", DataKey(drawingID))
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to parse drawing %s: stored payload is not valid JSON", drawingID)
	}
	return json.RawMessage(data), nil
}

// DownloadThumbnail fetches a drawing's thumbnail, byte-for-byte as uploaded.
func (c *Client) DownloadThumbnail(ctx context.Context, drawingID string) ([]byte, error) {
	return c.get(ctx, "download thumbnail", ThumbnailKey(drawingID))
}

func (c *Client) get(ctx context.Context, op, key string) ([]byte, error) {
	var data []byte
	err := c.withRetry(ctx, op, func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s %s: %w", op, key, ErrNoData)
	}
	return data, nil
}

// DrawingExists reports whether the drawing's JSON payload is present. It
// lists the drawing's key prefix and looks for data.json, so it never errors
// on plain absence; only real backend failures propagate. The thumbnail is
// not consulted, the two objects are written independently.
func (c *Client) DrawingExists(ctx context.Context, drawingID string) (bool, error) {
	var names []string
	err := c.withRetry(ctx, "check existence", func() error {
		var err error
		names, err = c.backend.List(ctx, DrawingPrefix(drawingID))
		return err
	})
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if path.Base(name) == "data.json" {
			return true, nil
		}
	}
	return false, nil
}

// DeleteDrawing removes both of a drawing's objects. The two deletions run
// concurrently, each with the full retry policy, and neither failure stops
// the other or reaches the caller as an error: cleanup is best effort and the
// operation always resolves. Per-object outcomes are reported in the result
// so callers keep observability.
func (c *Client) DeleteDrawing(ctx context.Context, drawingID string) DeleteResult {
	var (
		result DeleteResult
		wg     sync.WaitGroup
	)

	remove := func(op, key string, out *error) {
		defer wg.Done()
		*out = c.withRetry(ctx, op, func() error {
			return c.backend.Remove(ctx, []string{key})
		})
	}

	wg.Add(2)
	go remove("delete drawing data", DataKey(drawingID), &result.DataErr)
	go remove("delete drawing thumbnail", ThumbnailKey(drawingID), &result.ThumbnailErr)
	wg.Wait()

	if !result.Complete() {
		logrus.WithFields(logrus.Fields{
			"drawing_id":      drawingID,
			"data_error":      result.DataErr,
			"thumbnail_error": result.ThumbnailErr,
		}).Warn("Drawing deletion completed partially")
	}
	return result
}
