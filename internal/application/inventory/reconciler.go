package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/domain/inventory"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/astroguard/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInventoryFetchFailed aborts a reconciliation before any mutation
var ErrInventoryFetchFailed = shared.NewDomainError("INVENTORY_FETCH_FAILED", "Failed to fetch current inventory")

// OutcomeKind classifies the result of reconciling one canonical name
type OutcomeKind string

// Outcome kinds
const (
	OutcomeUpdateSucceeded OutcomeKind = "update-succeeded"
	OutcomeUpdateFailed    OutcomeKind = "update-failed"
	OutcomeCreateSucceeded OutcomeKind = "create-succeeded"
	OutcomeCreateFailed    OutcomeKind = "create-failed"
)

// Report messages
const (
	MessageNothingToReconcile = "No objects detected"
	MessageAllSucceeded       = "Inventory updated successfully"
	MessageAllFailed          = "Failed to update inventory"
)

// Succeeded reports whether the kind is a successful store mutation
func (k OutcomeKind) Succeeded() bool {
	return k == OutcomeUpdateSucceeded || k == OutcomeCreateSucceeded
}

// Outcome is the per-name result of a reconciliation
type Outcome struct {
	Kind             OutcomeKind `json:"kind"`
	Name             string      `json:"name"`
	Labels           []string    `json:"labels"`
	Delta            int64       `json:"delta"`
	ItemID           *uuid.UUID  `json:"item_id,omitempty"`
	PreviousQuantity int64       `json:"previous_quantity"`
	NewQuantity      int64       `json:"new_quantity"`
	Error            string      `json:"error,omitempty"`
}

// ReconcileReport summarizes one reconciliation batch
type ReconcileReport struct {
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Message   string    `json:"message"`
}

func (r *ReconcileReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Kind.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

func (r *ReconcileReport) finish() {
	switch {
	case len(r.Outcomes) == 0:
		r.Message = MessageNothingToReconcile
	case r.Failed == 0:
		r.Message = MessageAllSucceeded
	case r.Succeeded == 0:
		r.Message = MessageAllFailed
	default:
		r.Message = fmt.Sprintf("Inventory partially updated: %d of %d items failed", r.Failed, len(r.Outcomes))
	}
}

// itemDelta is the merged count for one canonical name
type itemDelta struct {
	name   string
	key    string
	labels []string
	count  int64
	// tooLarge marks a merged count above detection.MaxClassCount; it is
	// reported as a failure without touching the store
	tooLarge bool
}

// mergeCounts normalizes every label and sums counts that land on the same
// canonical name. Labels are visited in sorted order so the result is stable.
// Sums stop growing once they pass detection.MaxClassCount, so they never overflow.
func mergeCounts(counts detection.ClassCountMap) []itemDelta {
	var (
		deltas []itemDelta
		index  = make(map[string]int)
	)
	for _, label := range counts.Labels() {
		n := counts[label]
		if n <= 0 {
			continue
		}
		name := strings.TrimSpace(inventory.NormalizeLabel(strings.TrimSpace(label)))
		key := inventory.NameKey(name)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			deltas[i].labels = append(deltas[i].labels, label)
			if deltas[i].tooLarge || n > detection.MaxClassCount-deltas[i].count {
				deltas[i].tooLarge = true
				continue
			}
			deltas[i].count += n
			continue
		}
		index[key] = len(deltas)
		deltas = append(deltas, itemDelta{
			name:     name,
			key:      key,
			labels:   []string{label},
			count:    n,
			tooLarge: n > detection.MaxClassCount,
		})
	}
	return deltas
}

// findInSnapshot looks name up by exact match first, then by canonical key
func findInSnapshot(items []inventory.InventoryItem, d itemDelta) *inventory.InventoryItem {
	for i := range items {
		if items[i].Name == d.name {
			return &items[i]
		}
	}
	for i := range items {
		if inventory.NameKey(items[i].Name) == d.key {
			return &items[i]
		}
	}
	return nil
}

// Reconciler applies detected class counts to the item store.
// Each canonical name is mutated once per batch with a server-side increment.
type Reconciler struct {
	repo           inventory.ItemRepository
	eventPublisher shared.EventPublisher
	metrics        *telemetry.ReconcileMetrics
	logger         *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(repo inventory.ItemRepository) *Reconciler {
	return &Reconciler{
		repo:   repo,
		logger: zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for item change events
func (r *Reconciler) SetEventPublisher(publisher shared.EventPublisher) {
	r.eventPublisher = publisher
}

// SetMetrics sets the reconciliation metrics
func (r *Reconciler) SetMetrics(m *telemetry.ReconcileMetrics) {
	r.metrics = m
}

// SetLogger sets the logger
func (r *Reconciler) SetLogger(l *zap.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Reconcile mutates the store so every canonical name in counts gains its summed count.
// Per-item failures are reported in the result and do not stop the batch. The only
// returned error is ErrInventoryFetchFailed, in which case no mutation was attempted.
func (r *Reconciler) Reconcile(ctx context.Context, counts detection.ClassCountMap) (*ReconcileReport, error) {
	report := &ReconcileReport{Outcomes: []Outcome{}}

	deltas := mergeCounts(counts)
	if len(deltas) == 0 {
		report.finish()
		return report, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "Reconciler", "Reconcile",
		telemetry.WithAttribute(telemetry.SpanAttrLabelCount, len(counts)))
	defer span.End()
	start := time.Now()
	defer func() { r.metrics.RecordRun(ctx, time.Since(start)) }()

	snapshot, err := r.repo.FindAll(ctx)
	if err != nil {
		r.logger.Error("Failed to fetch inventory for reconciliation", zap.Error(err))
		r.metrics.RecordOutcome(ctx, "fetch-failed", "", 0)
		telemetry.RecordError(span, err)
		return nil, ErrInventoryFetchFailed.Wrap(err)
	}

	for _, d := range deltas {
		existing := findInSnapshot(snapshot, d)
		var o Outcome
		switch {
		case d.tooLarge:
			o = rejectTooLarge(existing, d)
		case existing != nil:
			o = r.increment(ctx, existing.ID, existing.Quantity, d)
		default:
			o = r.create(ctx, d)
		}
		report.add(o)
		r.metrics.RecordOutcome(ctx, string(o.Kind), o.Name, successUnits(o))

		if !o.Kind.Succeeded() {
			r.logger.Warn("Inventory reconciliation item failed",
				zap.String("name", o.Name),
				zap.String("kind", string(o.Kind)),
				zap.Int64("delta", o.Delta),
				zap.String("error", o.Error),
			)
		}
	}

	report.finish()
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcomeCount, len(report.Outcomes))
	telemetry.SetOK(span)
	r.logger.Info("Inventory reconciled",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// rejectTooLarge reports a delta whose merged count is out of range
func rejectTooLarge(existing *inventory.InventoryItem, d itemDelta) Outcome {
	o := Outcome{
		Kind:   OutcomeCreateFailed,
		Name:   d.name,
		Labels: d.labels,
		Delta:  d.count,
		Error:  fmt.Sprintf("Detected count exceeds %d", detection.MaxClassCount),
	}
	if existing != nil {
		id := existing.ID
		o.Kind = OutcomeUpdateFailed
		o.ItemID = &id
		o.PreviousQuantity = existing.Quantity
		o.NewQuantity = existing.Quantity
	}
	return o
}

func successUnits(o Outcome) int64 {
	if o.Kind.Succeeded() {
		return o.Delta
	}
	return 0
}

func (r *Reconciler) increment(ctx context.Context, id uuid.UUID, known int64, d itemDelta) Outcome {
	o := Outcome{
		Kind:             OutcomeUpdateFailed,
		Name:             d.name,
		Labels:           d.labels,
		Delta:            d.count,
		ItemID:           &id,
		PreviousQuantity: known,
		NewQuantity:      known,
	}

	confirmed, err := r.repo.IncrementQuantity(ctx, id, d.count)
	if err != nil {
		o.Error = err.Error()
		return o
	}

	previous := confirmed.Quantity - d.count
	o.Kind = OutcomeUpdateSucceeded
	o.Name = confirmed.Name
	o.PreviousQuantity = previous
	o.NewQuantity = confirmed.Quantity
	r.publish(ctx, inventory.NewItemQuantityChangedEvent(confirmed, previous))
	return o
}

func (r *Reconciler) create(ctx context.Context, d itemDelta) Outcome {
	o := Outcome{
		Kind:   OutcomeCreateFailed,
		Name:   d.name,
		Labels: d.labels,
		Delta:  d.count,
	}

	item, err := inventory.NewInventoryItem(d.name, d.count)
	if err != nil {
		o.Error = err.Error()
		return o
	}

	if err := r.repo.Create(ctx, item); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			o.Error = err.Error()
			return o
		}
		// another writer created the row after the snapshot was taken
		existing, findErr := r.repo.FindByNameKey(ctx, d.key)
		if findErr != nil {
			o.Error = findErr.Error()
			return o
		}
		return r.increment(ctx, existing.ID, existing.Quantity, d)
	}

	id := item.ID
	o.Kind = OutcomeCreateSucceeded
	o.Name = item.Name
	o.ItemID = &id
	o.NewQuantity = item.Quantity
	r.publish(ctx, item.GetDomainEvents()...)
	item.ClearDomainEvents()
	return o
}

func (r *Reconciler) publish(ctx context.Context, events ...shared.DomainEvent) {
	if r.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := r.eventPublisher.Publish(ctx, events...); err != nil {
		r.logger.Warn("Failed to publish item events", zap.Error(err))
	}
}
