package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosht/nosht/pkg/config"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Init(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Meter())

	cfg := &Config{Enabled: false, ServiceName: "test-service"}
	tel, err = Init(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, tel.config)
	assert.Nil(t, tel.tracerProvider)
	assert.Equal(t, tel, Get())

	assert.NoError(t, Shutdown(ctx))
}

func TestShutdown_NilGlobal(t *testing.T) {
	globalTelemetry = nil
	assert.NoError(t, Shutdown(context.Background()))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(
		config.AppConfig{Version: "2.0.0", Environment: "staging"},
		config.OTelConfig{Enabled: true, ServiceName: "nosht-api", CollectorAddr: "otel:4317"},
	)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "nosht-api", cfg.ServiceName)
	assert.Equal(t, "2.0.0", cfg.ServiceVersion)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "otel:4317", cfg.CollectorAddr)
}

func TestNewResource(t *testing.T) {
	res := newResource(&Config{ServiceName: "nosht", ServiceVersion: "1.0.0", Environment: "test"})
	require.NotNil(t, res)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "nosht", attrs["service.name"])
	assert.Equal(t, "1.0.0", attrs["service.version"])
	assert.Equal(t, "nosht", attrs["service.namespace"])
}

func TestStartSpan_NilGlobal(t *testing.T) {
	globalTelemetry = nil
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "reserve")
	assert.Equal(t, ctx, newCtx)
	assert.NotNil(t, span)
	assert.Empty(t, GetTraceID(newCtx))
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()

	// no-op spans must accept calls
	SetSpanError(ctx, errors.New("boom"))
	SetSpanAttributes(ctx, EventIDAttr(1), CompanyIDAttr(2))
}

func TestGetMeter_NilGlobal(t *testing.T) {
	globalTelemetry = nil
	assert.NotNil(t, GetMeter())
}
