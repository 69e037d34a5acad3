// Package catalog provides the durable farm catalog.
package catalog

import (
	"context"

	"github.com/donutsmp/farmbot/internal/domain"
)

// Store defines the catalog's read/write contract.
type Store interface {
	// Upsert creates or overwrites the farm entry identified by
	// (category, farmID). The category is created implicitly on first use.
	// The write must reach durable storage before Upsert returns nil.
	Upsert(ctx context.Context, category, farmID, name string, income float64) error

	// ListCategories returns a consistent snapshot of the catalog.
	// Categories are ordered by first insertion; farms are ordered by
	// insertion within their category.
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error
}
