package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository defines the interface for inventory item persistence.
// Quantity changes go through IncrementQuantity and DecrementQuantity, which
// apply the delta server-side and return the row as confirmed by the store.
type ItemRepository interface {
	// FindAll returns every item ordered by name
	FindAll(ctx context.Context) ([]InventoryItem, error)

	// FindByID finds an item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)

	// FindByNameKey finds an item by its canonical name key
	FindByNameKey(ctx context.Context, key string) (*InventoryItem, error)

	// Create inserts a new item; returns shared.ErrAlreadyExists when the name key is taken
	Create(ctx context.Context, item *InventoryItem) error

	// IncrementQuantity atomically adds delta to the stored quantity
	IncrementQuantity(ctx context.Context, id uuid.UUID, delta int64) (*InventoryItem, error)

	// DecrementQuantity atomically subtracts delta when the stored quantity allows it.
	// changed is false, and the item is returned as stored, when the quantity was below delta.
	DecrementQuantity(ctx context.Context, id uuid.UUID, delta int64) (item *InventoryItem, changed bool, err error)
}
