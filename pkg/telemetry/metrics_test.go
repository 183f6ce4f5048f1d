package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

func TestNewBookingMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewBookingMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.Reservations.Inc(ctx, ResultAttr("ok"))
	m.Reservations.Inc(ctx, ResultAttr("ok"))
	m.Reservations.Inc(ctx, ResultAttr("soft_conflict"))
	m.TicketsReserved.Add(ctx, 3, EventIDAttr(10))
	m.Webhooks.Inc(ctx, WebhookResultAttr("duplicate"), PurposeAttr("buy-tickets"))
	m.ReserveDurationSec.Record(ctx, 0.02)

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, metrics["nosht.reservations"], ResultAttr("ok")))
	assert.Equal(t, int64(1), sumFor(t, metrics["nosht.reservations"], ResultAttr("soft_conflict")))
	assert.Equal(t, int64(3), sumFor(t, metrics["nosht.tickets.reserved"], EventIDAttr(10)))
	assert.Equal(t, int64(1), sumFor(t, metrics["nosht.webhooks"], WebhookResultAttr("duplicate")))

	hist, ok := metrics["nosht.reserve.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestNewBookingMetrics_DefaultMeter(t *testing.T) {
	globalTelemetry = nil
	m, err := NewBookingMetrics(nil)
	require.NoError(t, err)

	// global no-op meter accepts records
	m.JobsEnqueued.Inc(context.Background(), JobNameAttr("send_event_conf"), ResultAttr("ok"))
}
