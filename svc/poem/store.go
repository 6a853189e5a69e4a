package poem

import (
	"context"
	"time"
)

// Store defines poem persistence.
type Store interface {
	Create(ctx context.Context, p *Poem) error

	// ListByUser returns one page of the user's poems plus the total count
	// for the active filters.
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Poem, int64, error)

	// Delete removes a poem only when it belongs to the user. Returns
	// ErrPoemNotFound otherwise.
	Delete(ctx context.Context, id, userID string) error

	// Usage aggregates generation counts by day and by poem type inside the
	// window.
	Usage(ctx context.Context, userID string, from, to time.Time) (*Usage, error)
}
