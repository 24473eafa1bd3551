package contracts

import (
	"context"
	"math"
	"time"
)

// Logger interface for contract violations, condition errors and decoration diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface follows the same dependency-free pattern as MetricsCollector and TracingCollector,
// allowing users to integrate with any logging backend that supports context-based correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting contract check counts and durations.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// The Checker uses the context-aware methods when available, falling back to MetricsCollector.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for tracing contract evaluation.
// Every evaluated condition gets its own span named "contract.<kind>".
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Metric names.
const (
	MetricChecksTotal   = "contract_checks_total"
	MetricCheckDuration = "contract_check_duration_seconds"
)

// Check outcomes, used as the "status" label and as span status.
const (
	StatusPassed   = "passed"
	StatusFailed   = "failed"
	StatusError    = "error"
	StatusCaptured = "captured"
)

// Label, span and log attribute keys.
const (
	AttrKind        = "kind"
	AttrStatus      = "status"
	AttrMode        = "mode"
	AttrText        = "contract.text"
	AttrDescription = "contract.description"
	AttrSnapshot    = "contract.snapshot"
	AttrStatusCode  = "contract.status_code"
	AttrDurationMS  = "duration_ms"
	AttrError       = "error"
)

const (
	spanNamePrefix = "contract."

	logMsgPreconditionFailed  = "contract: pre-condition violated"
	logMsgPostconditionFailed = "contract: post-condition violated"
	logMsgObservedViolation   = "contract: violation observed, response unaltered"
	logMsgConditionError      = "contract: condition returned an error"
	logMsgSnapshotCaptured    = "contract: snapshot captured"
	logMsgDecorated           = "contract: endpoint decorated"
)

func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// logDebug logs at debug level, preferring the contextual logger.
func (c *Checker) logDebug(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// logInfo logs at info level, preferring the contextual logger.
func (c *Checker) logInfo(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// logWarn logs at warn level, preferring the contextual logger.
func (c *Checker) logWarn(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// logError logs at error level, preferring the contextual logger.
func (c *Checker) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{AttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if c.logger != nil {
		c.logger.Error(msg, allArgs...)
	}
}

// recordCheck records the counter and the duration of one evaluated condition.
func (c *Checker) recordCheck(ctx context.Context, kind Kind, status string, duration time.Duration) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		AttrKind:   string(kind),
		AttrStatus: status,
		AttrMode:   string(c.mode),
	}

	if contextualCollector, ok := c.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, MetricChecksTotal, labels)
		contextualCollector.RecordDurationContext(ctx, MetricCheckDuration, duration, labels)

		return
	}

	c.metricsCollector.IncrementCounter(MetricChecksTotal, labels)
	c.metricsCollector.RecordDuration(MetricCheckDuration, duration, labels)
}

// startSpan starts a tracing span if the tracing collector is configured.
func (c *Checker) startSpan(ctx context.Context, kind Kind, attrs map[string]string) (context.Context, SpanContext) {
	if c.tracingCollector == nil {
		return ctx, nil
	}

	return c.tracingCollector.StartSpan(ctx, spanNamePrefix+string(kind), attrs)
}

// finishSpan finishes a tracing span if the tracing collector is configured.
func (c *Checker) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if c.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	c.tracingCollector.FinishSpan(span, status, attrs)
}
