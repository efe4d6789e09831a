package telemetry

import (
	"context"
	"testing"

	"github.com/hyperjump/principia/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_Enabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "principia-test",
		Endpoint:    "http://127.0.0.1:4318",
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
}

func TestNewProvider_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	resource := sdkresource.NewSchemaless(attribute.String("service.name", "principia"))
	provider := newProvider(exporter, resource)

	_, span := provider.Tracer("test").Start(context.Background(), "answer_question")
	span.End()
	require.NoError(t, provider.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "answer_question", spans[0].Name)
	require.NoError(t, provider.Shutdown(context.Background()))
}
