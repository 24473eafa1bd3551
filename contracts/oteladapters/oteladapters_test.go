package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/log/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/contracts/oteladapters"
)

func Test_SlogBridgeLogger_AllLevels(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message", "kind", "precondition")
	logger.InfoContext(ctx, "info message")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG"`)
	assert.Contains(t, output, `"kind":"precondition"`)
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func Test_NewSlogBridgeLogger_DoesNotPanic(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("contracts-test")

	assert.NotPanics(t, func() {
		logger.InfoContext(context.Background(), "message", "key", "value")
	})
}

func Test_OTelLogger_ArgumentHandling(t *testing.T) {
	logger := oteladapters.NewOTelLogger(noop.NewLoggerProvider().Logger("test"))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.InfoContext(ctx, "message", "string", "v", "int", 1, "float", 1.5, "bool", true, "other", time.Second)
		logger.WarnContext(ctx, "odd args", "dangling")
		logger.ErrorContext(ctx, "non-string key", 42, "v")
		logger.DebugContext(ctx, "no args")
	})
}

func Test_MetricsCollector_RecordsCountersAndHistograms(t *testing.T) {
	// arrange
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(provider.Meter("test"))
	labels := map[string]string{contracts.AttrKind: "precondition", contracts.AttrStatus: contracts.StatusFailed}

	// act
	collector.IncrementCounter(contracts.MetricChecksTotal, labels)
	collector.IncrementCounterContext(context.Background(), contracts.MetricChecksTotal, labels)
	collector.RecordDuration(contracts.MetricCheckDuration, 150*time.Millisecond, labels)
	collector.RecordValue("contract_inflight", 3, nil)

	// assert
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}

	sum, ok := found[contracts.MetricChecksTotal].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
	status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key(contracts.AttrStatus))
	assert.Equal(t, contracts.StatusFailed, status.AsString())

	histogram, ok := found[contracts.MetricCheckDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	gauge, ok := found["contract_inflight"].(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 3.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_TracingCollector_MapsStatuses(t *testing.T) {
	testCases := []struct {
		status string
		code   codes.Code
	}{
		{status: contracts.StatusPassed, code: codes.Ok},
		{status: contracts.StatusCaptured, code: codes.Ok},
		{status: contracts.StatusFailed, code: codes.Error},
		{status: contracts.StatusError, code: codes.Error},
		{status: "skipped", code: codes.Unset},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			// arrange
			exporter := tracetest.NewInMemoryExporter()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			collector := oteladapters.NewTracingCollector(provider.Tracer("test"))

			// act
			_, span := collector.StartSpan(context.Background(), "contract.precondition", map[string]string{contracts.AttrText: "x > 0"})
			span.AddAttribute("extra", "1")
			collector.FinishSpan(span, tc.status, map[string]string{"end": "yes"})

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, "contract.precondition", spans[0].Name)
			assert.Equal(t, tc.code, spans[0].Status.Code)
			assert.Contains(t, spans[0].Attributes, attribute.String(contracts.AttrText, "x > 0"))
			assert.Contains(t, spans[0].Attributes, attribute.String("extra", "1"))
			assert.Contains(t, spans[0].Attributes, attribute.String("end", "yes"))
		})
	}
}

func Test_Checker_WithOTelAdapters_ExportsContractSpans(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	checker, err := contracts.NewChecker(
		contracts.WithTracing(oteladapters.NewTracingCollector(provider.Tracer("contracts"))),
		contracts.WithMetrics(oteladapters.NewMetricsCollector(meterProvider.Meter("contracts"))),
	)
	require.NoError(t, err)

	ep := checker.MustDecorate(
		contracts.Handle(contracts.NewSignature(), func(context.Context, contracts.Args) (any, error) { return nil, nil }),
		contracts.Require(contracts.Predicate(func(contracts.Bindings) bool { return false }), contracts.StatusCode(409)),
	)

	// act
	_, err = contracts.Run(context.Background(), ep, nil)

	// assert
	var preErr *contracts.PreconditionError
	require.ErrorAs(t, err, &preErr)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "contract.precondition", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}
