package telemetry

import (
	"context"
	"fmt"

	"realtycrm/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the CRM counters. A nil *Metrics records nothing.
type Metrics struct {
	mutations     metric.Int64Counter
	degradedReads metric.Int64Counter
	deniedActions metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFromMeter(otel.Meter("realtycrm"))
}

func NewMetricsFromMeter(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.mutations, err = meter.Int64Counter("crm_mutations_total",
		metric.WithDescription("Mutations applied, by module and activity action"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create mutations counter: %w", err)
	}

	m.degradedReads, err = meter.Int64Counter("crm_degraded_reads_total",
		metric.WithDescription("List reads answered from a snapshot or an empty fallback"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create degraded reads counter: %w", err)
	}

	m.deniedActions, err = meter.Int64Counter("crm_denied_actions_total",
		metric.WithDescription("Mutations rejected by the permission gate"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("failed to create denied actions counter: %w", err)
	}

	return &m, nil
}

func (m *Metrics) RecordMutation(ctx context.Context, module model.Module, action model.ActivityAction) {
	if m == nil {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", string(module)),
		attribute.String("action", string(action)),
	))
}

func (m *Metrics) RecordDegradedRead(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.degradedReads.Add(ctx, 1, metric.WithAttributes(attribute.String("snapshot", key)))
}

func (m *Metrics) RecordDenied(ctx context.Context, module model.Module, action model.Action) {
	if m == nil {
		return
	}
	m.deniedActions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", string(module)),
		attribute.String("action", string(action)),
	))
}
