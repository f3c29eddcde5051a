package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/astroguard/backend/internal/domain/inventory"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/astroguard/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultItemName is used when a manual add names no item
const DefaultItemName = inventory.NameOxygenTank

// ItemService handles the manual item operations of the dashboard
type ItemService struct {
	repo           inventory.ItemRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewItemService creates a new ItemService
func NewItemService(repo inventory.ItemRepository) *ItemService {
	return &ItemService{
		repo:   repo,
		logger: zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ItemService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger
func (s *ItemService) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// List returns all items ordered by name
func (s *ItemService) List(ctx context.Context) ([]ItemResponse, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToItemResponses(items), nil
}

// Get returns a single item
func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (*ItemResponse, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// Aliases returns the detector label to item name table used when
// reconciling detections
func (s *ItemService) Aliases() []inventory.Alias {
	return inventory.Aliases()
}

// AddQuantity adds req.Quantity units to the named item, creating it when it
// does not exist yet. The returned item is the state confirmed by the store.
func (s *ItemService) AddQuantity(ctx context.Context, req AddQuantityRequest) (*ItemChangeResponse, error) {
	if req.Quantity < 1 {
		return nil, shared.ErrInvalidInput.WithMessage("Quantity must be at least 1")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultItemName
	}
	name = inventory.NormalizeLabel(name)

	ctx, span := telemetry.StartServiceSpan(ctx, "ItemService", "AddQuantity",
		telemetry.WithAttribute(telemetry.SpanAttrItemName, name),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, req.Quantity))
	defer span.End()

	item, err := s.addQuantity(ctx, name, req.Quantity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	return &ItemChangeResponse{
		Item:    ToItemResponse(item),
		Changed: true,
		Message: fmt.Sprintf("Added %d %s(s) to inventory.", req.Quantity, item.Name),
	}, nil
}

func (s *ItemService) addQuantity(ctx context.Context, name string, n int64) (*inventory.InventoryItem, error) {
	key := inventory.NameKey(name)

	existing, err := s.repo.FindByNameKey(ctx, key)
	switch {
	case err == nil:
		return s.increment(ctx, existing.ID, n)
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	item, err := inventory.NewInventoryItem(name, n)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		existing, err := s.repo.FindByNameKey(ctx, key)
		if err != nil {
			return nil, err
		}
		return s.increment(ctx, existing.ID, n)
	}

	s.publishItem(ctx, item)
	return item, nil
}

func (s *ItemService) increment(ctx context.Context, id uuid.UUID, n int64) (*inventory.InventoryItem, error) {
	confirmed, err := s.repo.IncrementQuantity(ctx, id, n)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, inventory.NewItemQuantityChangedEvent(confirmed, confirmed.Quantity-n))
	return confirmed, nil
}

// RemoveOne takes one unit out of the item. At quantity 0 nothing changes and
// the stored item is returned with Changed false.
func (s *ItemService) RemoveOne(ctx context.Context, id uuid.UUID) (*ItemChangeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ItemService", "RemoveOne",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, id.String()))
	defer span.End()

	confirmed, changed, err := s.repo.DecrementQuantity(ctx, id, 1)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	resp := &ItemChangeResponse{Item: ToItemResponse(confirmed), Changed: changed}
	if !changed {
		resp.Message = fmt.Sprintf("No %s left to remove.", confirmed.Name)
		return resp, nil
	}
	s.publish(ctx, inventory.NewItemQuantityChangedEvent(confirmed, confirmed.Quantity+1))
	resp.Message = fmt.Sprintf("Removed 1 %s from inventory.", confirmed.Name)
	return resp, nil
}

// Summary reports the quantities of the canonical names and the total across
// every item. Items are matched by canonical name key, never by position.
func (s *ItemService) Summary(ctx context.Context) (*SummaryResponse, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]int64, len(items))
	var total int64
	for _, item := range items {
		byKey[inventory.NameKey(item.Name)] += item.Quantity
		total += item.Quantity
	}

	names := inventory.CanonicalNames()
	resp := &SummaryResponse{Items: make([]SummaryEntry, 0, len(names)), Total: total}
	for _, name := range names {
		resp.Items = append(resp.Items, SummaryEntry{Name: name, Quantity: byKey[inventory.NameKey(name)]})
	}
	return resp, nil
}

func (s *ItemService) publishItem(ctx context.Context, item *inventory.InventoryItem) {
	s.publish(ctx, item.GetDomainEvents()...)
	item.ClearDomainEvents()
}

func (s *ItemService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	// Publish errors are logged by the event bus; the store change already happened
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish item events", zap.Error(err))
	}
}
