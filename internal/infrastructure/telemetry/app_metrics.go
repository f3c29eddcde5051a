package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// DetectionMetrics tracks calls to the object detection service.
// A nil *DetectionMetrics is valid and records nothing.
type DetectionMetrics struct {
	requests *Counter
	duration *Histogram
	objects  *Counter
}

// NewDetectionMetrics registers the detection instruments on meter.
func NewDetectionMetrics(meter metric.Meter) (*DetectionMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	requests, err := NewCounter(meter, "detection_requests_total",
		"Detection service calls by media kind and outcome", "{request}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "detection_request_duration_seconds",
		Description: "Detection service round trip latency in seconds",
		Unit:        "s",
		Boundaries:  DetectionDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	objects, err := NewCounter(meter, "detection_objects_total",
		"Objects reported by the detection service by class", "{object}")
	if err != nil {
		return nil, err
	}
	return &DetectionMetrics{requests: requests, duration: duration, objects: objects}, nil
}

// ObserveRequest records one detection round trip.
func (m *DetectionMetrics) ObserveRequest(ctx context.Context, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.Inc(ctx, AttrDetectionKind.String(kind), AttrDetectionOutcome.String(outcome))
	m.duration.RecordDuration(ctx, d, AttrDetectionKind.String(kind))
}

// ObserveObjects records per-class object counts from one analysis.
func (m *DetectionMetrics) ObserveObjects(ctx context.Context, counts map[string]int64) {
	if m == nil {
		return
	}
	for label, n := range counts {
		if n > 0 {
			m.objects.Add(ctx, n, AttrItemName.String(label))
		}
	}
}

// ReconcileMetrics tracks inventory reconciliation runs.
// A nil *ReconcileMetrics is valid and records nothing.
type ReconcileMetrics struct {
	outcomes *Counter
	units    *Counter
	duration *Histogram
}

// NewReconcileMetrics registers the reconciliation instruments on meter.
func NewReconcileMetrics(meter metric.Meter) (*ReconcileMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	outcomes, err := NewCounter(meter, "inventory_reconcile_outcomes_total",
		"Per-item reconciliation outcomes", "{outcome}")
	if err != nil {
		return nil, err
	}
	units, err := NewCounter(meter, "inventory_reconcile_units_total",
		"Units added to inventory by reconciliation", "{unit}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "inventory_reconcile_duration_seconds",
		Description: "Reconciliation run latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &ReconcileMetrics{outcomes: outcomes, units: units, duration: duration}, nil
}

// RecordOutcome records one per-item outcome. Units are counted only when positive.
func (m *ReconcileMetrics) RecordOutcome(ctx context.Context, outcome, name string, units int64) {
	if m == nil {
		return
	}
	m.outcomes.Inc(ctx, AttrReconcileOutcome.String(outcome))
	if units > 0 {
		m.units.Add(ctx, units, AttrItemName.String(name))
	}
}

// RecordRun records the latency of a whole reconciliation run.
func (m *ReconcileMetrics) RecordRun(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.RecordDuration(ctx, d)
}

// RealtimeMetrics tracks inventory change subscribers.
// A nil *RealtimeMetrics is valid and records nothing.
type RealtimeMetrics struct {
	subscribers *UpDownCounter
	dropped     *Counter
	delivered   *Counter
}

// NewRealtimeMetrics registers the realtime instruments on meter.
func NewRealtimeMetrics(meter metric.Meter) (*RealtimeMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	subscribers, err := NewUpDownCounter(meter, "realtime_subscribers",
		"Connected inventory change subscribers", "{subscriber}")
	if err != nil {
		return nil, err
	}
	dropped, err := NewCounter(meter, "realtime_subscribers_dropped_total",
		"Subscribers disconnected for falling behind", "{subscriber}")
	if err != nil {
		return nil, err
	}
	delivered, err := NewCounter(meter, "realtime_notifications_total",
		"Inventory change notifications fanned out", "{notification}")
	if err != nil {
		return nil, err
	}
	return &RealtimeMetrics{subscribers: subscribers, dropped: dropped, delivered: delivered}, nil
}

// Connected records a new subscriber.
func (m *RealtimeMetrics) Connected(ctx context.Context, protocol string) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, 1, AttrRealtimeProtocol.String(protocol))
}

// Disconnected records a subscriber leaving.
func (m *RealtimeMetrics) Disconnected(ctx context.Context, protocol string) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, -1, AttrRealtimeProtocol.String(protocol))
}

// Dropped records a subscriber evicted for a full buffer.
func (m *RealtimeMetrics) Dropped(ctx context.Context, protocol string) {
	if m == nil {
		return
	}
	m.dropped.Inc(ctx, AttrRealtimeProtocol.String(protocol))
}

// Delivered records one notification accepted by n subscribers.
func (m *RealtimeMetrics) Delivered(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.delivered.Add(ctx, int64(n))
}
