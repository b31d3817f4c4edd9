package core

import (
	"context"
	"time"
)

type (
	// Drawing holds the relational metadata for one drawing. The payload
	// itself lives in object storage; only the resolved URLs are kept here.
	Drawing struct {
		ID           string    `json:"id"`
		UserID       string    `json:"-"` // Not exposed in JSON responses, used internally.
		Name         string    `json:"name"`
		DataURL      string    `json:"dataUrl,omitempty"`
		ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// DrawingStore defines the metadata persistence layer. All operations
	// are scoped to a specific user.
	DrawingStore interface {
		// List returns metadata for all drawings owned by a user.
		List(ctx context.Context, userID string) ([]*Drawing, error)

		// Get returns a single drawing by its ID, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Drawing, error)

		// Owner returns the user owning the drawing id, or "" when the id
		// is unclaimed. Object keys carry no user segment, so this lookup
		// is the tenant boundary for writes and deletes.
		Owner(ctx context.Context, id string) (string, error)

		// Save creates or updates a drawing's metadata.
		Save(ctx context.Context, drawing *Drawing) error

		// Delete removes a drawing's metadata, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error
	}
)
