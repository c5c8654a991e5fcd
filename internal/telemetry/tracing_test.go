package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: "none"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	_, err := SetupTracing(context.Background(), TraceConfig{Exporter: "zipkin"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSetupTracingOTLPRequiresEndpoint(t *testing.T) {
	_, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSetupTracingStdoutExportsSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := SetupTracing(context.Background(), TraceConfig{
		ServiceName: "proto-book-test",
		Exporter:    "stdout",
		Writer:      &out,
	}, zerolog.Nop())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.rendered")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "pipeline.rendered")
	assert.Contains(t, out.String(), "proto-book-test")
}
