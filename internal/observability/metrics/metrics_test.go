package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("zone", "Cleanroom A"),
		attribute.String("user", "Jane Doe"),
		attribute.String("outcome", "assigned"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("zone"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBasketAssignment(context.Background(), "Cleanroom A", "assigned")
		m.RecordUsageRowsSkipped(context.Background(), 3)
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "labdesk"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordStatusChange(context.Background(), false)
	m.RecordActiveUsers(context.Background(), 12)
}
