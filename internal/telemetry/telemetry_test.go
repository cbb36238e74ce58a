package telemetry

import (
	"context"
	"net/http/httptest"
	"testing"

	"realtycrm/internal/config"
	"realtycrm/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		endpoint string
		secure   bool
	}{
		{"localhost:4317", "localhost:4317", false},
		{"grpc://collector:4317", "collector:4317", false},
		{"https://otlp.example.com:443", "otlp.example.com:443", true},
	}
	for _, tt := range tests {
		endpoint, secure := parseEndpoint(tt.in)
		assert.Equal(t, tt.endpoint, endpoint)
		assert.Equal(t, tt.secure, secure)
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMutation(context.Background(), model.ModuleLeads, model.ActivityCreated)
		m.RecordDegradedRead(context.Background(), "snapshot:leads")
		m.RecordDenied(context.Background(), model.ModuleLeads, model.ActionEdit)
	})

	m, err := NewMetricsFromMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	m.RecordMutation(context.Background(), model.ModuleTasks, model.ActivityUpdated)
}

func TestFiberMiddleware_StoresContext(t *testing.T) {
	app := fiber.New()
	app.Use(FiberMiddleware("test"))
	app.Get("/ping", func(c *fiber.Ctx) error {
		assert.NotNil(t, ContextFromFiber(c))
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
