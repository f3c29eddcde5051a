package inventory

import (
	"time"

	"github.com/astroguard/backend/internal/domain/inventory"
	"github.com/google/uuid"
)

// ItemResponse represents an inventory item in API responses
type ItemResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToItemResponse converts a domain item to a response
func ToItemResponse(item *inventory.InventoryItem) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		Version:   item.GetVersion(),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

// ToItemResponses converts a list of domain items
func ToItemResponses(items []inventory.InventoryItem) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = ToItemResponse(&items[i])
	}
	return out
}

// AddQuantityRequest adds units of a named item
type AddQuantityRequest struct {
	Name     string `json:"name" binding:"max=100"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
}

// ItemChangeResponse carries the confirmed item after a manual change
type ItemChangeResponse struct {
	Item    ItemResponse `json:"item"`
	Changed bool         `json:"changed"`
	Message string       `json:"message"`
}

// SummaryEntry is the stored quantity of one canonical name
type SummaryEntry struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// SummaryResponse is the dashboard summary: the canonical names plus the
// total across every stored item
type SummaryResponse struct {
	Items []SummaryEntry `json:"items"`
	Total int64          `json:"total"`
}

// Quantity returns the summary quantity for name, or 0
func (s *SummaryResponse) Quantity(name string) int64 {
	key := inventory.NameKey(name)
	for _, e := range s.Items {
		if inventory.NameKey(e.Name) == key {
			return e.Quantity
		}
	}
	return 0
}
