package handler

import (
	inventoryapp "github.com/astroguard/backend/internal/application/inventory"
	"github.com/astroguard/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ItemHandler handles the item list endpoints
type ItemHandler struct {
	BaseHandler
	itemService *inventoryapp.ItemService
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(itemService *inventoryapp.ItemService) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
	}
}

// List handles GET /items
func (h *ItemHandler) List(c *gin.Context) {
	items, err := h.itemService.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// Get handles GET /items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	item, err := h.itemService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// Aliases handles GET /inventory/aliases
func (h *ItemHandler) Aliases(c *gin.Context) {
	h.Success(c, h.itemService.Aliases())
}

// Add handles POST /items/add, adding units to a named item
func (h *ItemHandler) Add(c *gin.Context) {
	var req inventoryapp.AddQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.itemService.AddQuantity(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Remove handles POST /items/:id/remove, taking one unit away unless the
// item is already at zero
func (h *ItemHandler) Remove(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.itemService.RemoveOne(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Summary handles GET /items/summary
func (h *ItemHandler) Summary(c *gin.Context) {
	summary, err := h.itemService.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
