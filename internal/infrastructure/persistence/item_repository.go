package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/astroguard/backend/internal/domain/inventory"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormItemRepository implements inventory.ItemRepository using GORM.
// Quantity changes are applied as a single UPDATE with a server-side
// expression and re-read inside the same transaction.
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindAll returns every item ordered by name
func (r *GormItemRepository) FindAll(ctx context.Context) ([]inventory.InventoryItem, error) {
	var items []inventory.InventoryItem
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryItem, error) {
	return findItem(r.db.WithContext(ctx), "id = ?", id)
}

// FindByNameKey finds an item by its canonical name key
func (r *GormItemRepository) FindByNameKey(ctx context.Context, key string) (*inventory.InventoryItem, error) {
	return findItem(r.db.WithContext(ctx), "name_key = ?", key)
}

func findItem(db *gorm.DB, query string, arg any) (*inventory.InventoryItem, error) {
	var item inventory.InventoryItem
	if err := db.Where(query, arg).First(&item).Error; err != nil {
		return nil, translateError(err)
	}
	return &item, nil
}

// Create inserts a new item
func (r *GormItemRepository) Create(ctx context.Context, item *inventory.InventoryItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// IncrementQuantity atomically adds delta and returns the confirmed row
func (r *GormItemRepository) IncrementQuantity(ctx context.Context, id uuid.UUID, delta int64) (*inventory.InventoryItem, error) {
	if delta <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Quantity delta must be positive")
	}

	var item *inventory.InventoryItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&inventory.InventoryItem{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity + ?", delta),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		var err error
		item, err = findItem(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}
	return item, nil
}

// DecrementQuantity atomically subtracts delta when the stored quantity is at least delta
func (r *GormItemRepository) DecrementQuantity(ctx context.Context, id uuid.UUID, delta int64) (*inventory.InventoryItem, bool, error) {
	if delta <= 0 {
		return nil, false, shared.ErrInvalidInput.WithMessage("Quantity delta must be positive")
	}

	var (
		item    *inventory.InventoryItem
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&inventory.InventoryItem{}).
			Where("id = ? AND quantity >= ?", id, delta).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity - ?", delta),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		changed = result.RowsAffected > 0

		var err error
		item, err = findItem(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, false, translateError(err)
	}
	return item, changed, nil
}

// Ensure GormItemRepository implements ItemRepository
var _ inventory.ItemRepository = (*GormItemRepository)(nil)
