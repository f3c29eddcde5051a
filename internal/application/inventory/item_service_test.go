package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/astroguard/backend/internal/domain/inventory"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestItemService(repo *MockItemRepository) (*ItemService, *MockEventPublisher) {
	publisher := NewMockEventPublisher()
	s := NewItemService(repo)
	s.SetEventPublisher(publisher)
	return s, publisher
}

func TestItemService_List(t *testing.T) {
	repo := new(MockItemRepository)
	s, _ := newTestItemService(repo)

	items := []inventory.InventoryItem{storedItem(t, "Oxygen Tank", 2), storedItem(t, "Toolbox", 1)}
	repo.On("FindAll", mock.Anything).Return(items, nil)

	got, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Oxygen Tank", got[0].Name)
	assert.Equal(t, int64(2), got[0].Quantity)
	assert.Equal(t, items[1].ID, got[1].ID)
}

func TestItemService_List_Error(t *testing.T) {
	repo := new(MockItemRepository)
	s, _ := newTestItemService(repo)
	repo.On("FindAll", mock.Anything).Return(nil, errors.New("boom"))

	_, err := s.List(context.Background())
	assert.Error(t, err)
}

func TestItemService_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, _ := newTestItemService(repo)

		tank := storedItem(t, "Oxygen Tank", 3)
		repo.On("FindByID", mock.Anything, tank.ID).Return(&tank, nil)

		got, err := s.Get(context.Background(), tank.ID)
		require.NoError(t, err)
		assert.Equal(t, tank.ID, got.ID)
		assert.Equal(t, "Oxygen Tank", got.Name)
		assert.Equal(t, int64(3), got.Quantity)
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, _ := newTestItemService(repo)

		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := s.Get(context.Background(), id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestItemService_Aliases(t *testing.T) {
	s, _ := newTestItemService(new(MockItemRepository))

	aliases := s.Aliases()
	require.Len(t, aliases, 3)
	assert.Equal(t, inventory.Alias{Label: "FireExtinguisher", Name: inventory.NameFireExtinguisher}, aliases[0])
	assert.Contains(t, aliases, inventory.Alias{Label: "ToolBox", Name: inventory.NameToolbox})
}

func TestItemService_AddQuantity(t *testing.T) {
	t.Run("increments existing item", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, publisher := newTestItemService(repo)

		toolbox := storedItem(t, "Toolbox", 3)
		repo.On("FindByNameKey", mock.Anything, "toolbox").Return(&toolbox, nil)
		repo.On("IncrementQuantity", mock.Anything, toolbox.ID, int64(2)).
			Return(withQuantity(toolbox, 5), nil)

		resp, err := s.AddQuantity(context.Background(), AddQuantityRequest{Name: "ToolBox", Quantity: 2})
		require.NoError(t, err)
		assert.True(t, resp.Changed)
		assert.Equal(t, int64(5), resp.Item.Quantity)
		assert.Equal(t, "Added 2 Toolbox(s) to inventory.", resp.Message)

		events := publisher.GetEventsByType(inventory.EventTypeItemQuantityChanged)
		require.Len(t, events, 1)
		assert.Equal(t, int64(3), events[0].(*inventory.ItemQuantityChangedEvent).PreviousQuantity)
	})

	t.Run("defaults to oxygen tank and creates it", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, publisher := newTestItemService(repo)

		repo.On("FindByNameKey", mock.Anything, "oxygen tank").Return(nil, shared.ErrNotFound)
		repo.On("Create", mock.Anything, itemNamed("Oxygen Tank", 1)).Return(nil)

		resp, err := s.AddQuantity(context.Background(), AddQuantityRequest{Quantity: 1})
		require.NoError(t, err)
		assert.Equal(t, "Oxygen Tank", resp.Item.Name)
		assert.Equal(t, int64(1), resp.Item.Quantity)
		assert.Len(t, publisher.GetEventsByType(inventory.EventTypeItemCreated), 1)
	})

	t.Run("falls back to increment when a concurrent create wins", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, _ := newTestItemService(repo)

		winner := storedItem(t, "Fire Extinguisher", 1)
		repo.On("FindByNameKey", mock.Anything, "fire extinguisher").Return(nil, shared.ErrNotFound).Once()
		repo.On("Create", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
		repo.On("FindByNameKey", mock.Anything, "fire extinguisher").Return(&winner, nil).Once()
		repo.On("IncrementQuantity", mock.Anything, winner.ID, int64(3)).Return(withQuantity(winner, 4), nil)

		resp, err := s.AddQuantity(context.Background(), AddQuantityRequest{Name: "fire extinguisher", Quantity: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), resp.Item.Quantity)
		repo.AssertExpectations(t)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, _ := newTestItemService(repo)

		_, err := s.AddQuantity(context.Background(), AddQuantityRequest{Name: "Toolbox", Quantity: 0})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Empty(t, repo.Calls)
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, _ := newTestItemService(repo)
		repo.On("FindByNameKey", mock.Anything, "toolbox").Return(nil, errors.New("timeout"))

		_, err := s.AddQuantity(context.Background(), AddQuantityRequest{Name: "Toolbox", Quantity: 1})
		assert.EqualError(t, err, "timeout")
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestItemService_RemoveOne(t *testing.T) {
	t.Run("decrements", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, publisher := newTestItemService(repo)

		tank := storedItem(t, "Oxygen Tank", 2)
		repo.On("DecrementQuantity", mock.Anything, tank.ID, int64(1)).Return(withQuantity(tank, 1), true, nil)

		resp, err := s.RemoveOne(context.Background(), tank.ID)
		require.NoError(t, err)
		assert.True(t, resp.Changed)
		assert.Equal(t, int64(1), resp.Item.Quantity)
		assert.Equal(t, "Removed 1 Oxygen Tank from inventory.", resp.Message)

		events := publisher.GetEventsByType(inventory.EventTypeItemQuantityChanged)
		require.Len(t, events, 1)
		assert.Equal(t, int64(-1), events[0].(*inventory.ItemQuantityChangedEvent).Delta())
	})

	t.Run("no-op at zero", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, publisher := newTestItemService(repo)

		empty := storedItem(t, "Toolbox", 0)
		repo.On("DecrementQuantity", mock.Anything, empty.ID, int64(1)).Return(&empty, false, nil)

		resp, err := s.RemoveOne(context.Background(), empty.ID)
		require.NoError(t, err)
		assert.False(t, resp.Changed)
		assert.Zero(t, resp.Item.Quantity)
		assert.Empty(t, publisher.GetEvents())
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := new(MockItemRepository)
		s, _ := newTestItemService(repo)

		id := uuid.New()
		repo.On("DecrementQuantity", mock.Anything, id, int64(1)).Return(nil, false, shared.ErrNotFound)

		_, err := s.RemoveOne(context.Background(), id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestItemService_Summary(t *testing.T) {
	repo := new(MockItemRepository)
	s, _ := newTestItemService(repo)

	// row order differs from the summary order and one canonical name is missing
	repo.On("FindAll", mock.Anything).Return([]inventory.InventoryItem{
		storedItem(t, "Wrench", 4),
		storedItem(t, "fire extinguisher", 2),
		storedItem(t, "Toolbox", 5),
	}, nil)

	summary, err := s.Summary(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Items, 3)
	assert.Equal(t, SummaryEntry{Name: "Toolbox", Quantity: 5}, summary.Items[0])
	assert.Equal(t, SummaryEntry{Name: "Oxygen Tank", Quantity: 0}, summary.Items[1])
	assert.Equal(t, SummaryEntry{Name: "Fire Extinguisher", Quantity: 2}, summary.Items[2])
	assert.Equal(t, int64(11), summary.Total)
	assert.Equal(t, int64(2), summary.Quantity("FireExtinguisher"))
	assert.Zero(t, summary.Quantity("Hammer"))
}
