package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("actor_kind", "admin"),
		attribute.String("work_order_id", "456"),
		attribute.String("outcome", "sent"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "actor_kind" && attrs[1].Key != "actor_kind" {
		t.Fatalf("expected actor_kind to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvoiceGenerated(context.Background(), "admin")
	m.RecordNotification(context.Background(), "work_completed", "failed")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "workdesk"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordWorkOrderTransition(context.Background(), "Pending", "Completed")
	m.RecordLoginAttempt(context.Background(), "company", "success")
}
