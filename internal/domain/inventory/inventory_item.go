package inventory

import (
	"strings"
	"unicode/utf8"

	"github.com/astroguard/backend/internal/domain/shared"
)

// MaxNameLength bounds the stored item name
const MaxNameLength = 100

// InventoryItem is a counted inventory line keyed by its canonical name.
// NameKey holds the write-time canonicalization of Name and is unique, so two
// rows with equivalent names can never coexist.
type InventoryItem struct {
	shared.BaseAggregateRoot
	Name     string `gorm:"type:varchar(100);not null"`
	NameKey  string `gorm:"type:varchar(100);not null;uniqueIndex:idx_items_name_key"`
	Quantity int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InventoryItem) TableName() string {
	return "items"
}

// NewInventoryItem creates a new item under the canonical form of name
func NewInventoryItem(name string, quantity int64) (*InventoryItem, error) {
	canonical := strings.TrimSpace(NormalizeLabel(strings.TrimSpace(name)))
	if canonical == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Item name cannot be empty")
	}
	if utf8.RuneCountInString(canonical) > MaxNameLength {
		return nil, shared.NewDomainError("INVALID_NAME", "Item name cannot exceed 100 characters")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}

	item := &InventoryItem{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              canonical,
		NameKey:           NameKey(canonical),
		Quantity:          quantity,
	}
	item.AddDomainEvent(NewItemCreatedEvent(item))

	return item, nil
}
