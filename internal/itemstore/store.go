package itemstore

import (
	"context"

	"github.com/starford/raido/internal/models"
)

// Store defines the interface for item record persistence.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Store interface {
	// Get returns the item with the given id, or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Item, error)
	// Put inserts or replaces the whole item record.
	Put(ctx context.Context, item *models.Item) error
	// Delete removes the item record.
	Delete(ctx context.Context, id string) error
	// Scan returns every item ordered by creation time.
	Scan(ctx context.Context) ([]models.Item, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
