package inventory

import (
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeInventoryItem = "InventoryItem"

// Event type constants
const (
	EventTypeItemCreated         = "ItemCreated"
	EventTypeItemQuantityChanged = "ItemQuantityChanged"
)

// ItemCreatedEvent is raised when a previously unknown item is first stored
type ItemCreatedEvent struct {
	shared.BaseDomainEvent
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Quantity int64     `json:"quantity"`
}

// NewItemCreatedEvent creates a new ItemCreatedEvent
func NewItemCreatedEvent(item *InventoryItem) *ItemCreatedEvent {
	return &ItemCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemCreated, AggregateTypeInventoryItem, item.ID),
		ItemID:          item.ID,
		Name:            item.Name,
		Quantity:        item.Quantity,
	}
}

// ItemQuantityChangedEvent is raised when the stored quantity of an item changes
type ItemQuantityChangedEvent struct {
	shared.BaseDomainEvent
	ItemID           uuid.UUID `json:"item_id"`
	Name             string    `json:"name"`
	PreviousQuantity int64     `json:"previous_quantity"`
	Quantity         int64     `json:"quantity"`
}

// NewItemQuantityChangedEvent creates a new ItemQuantityChangedEvent from the confirmed item state
func NewItemQuantityChangedEvent(item *InventoryItem, previous int64) *ItemQuantityChangedEvent {
	return &ItemQuantityChangedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeItemQuantityChanged, AggregateTypeInventoryItem, item.ID),
		ItemID:           item.ID,
		Name:             item.Name,
		PreviousQuantity: previous,
		Quantity:         item.Quantity,
	}
}

// Delta returns the signed quantity change
func (e *ItemQuantityChangedEvent) Delta() int64 {
	return e.Quantity - e.PreviousQuantity
}
