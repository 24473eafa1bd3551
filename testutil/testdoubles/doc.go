// Package testdoubles provides spies for the observability interfaces of package contracts
// and for slog handlers.
//
//   - MetricsCollectorSpy: captures contract check counters and durations
//   - TracingCollectorSpy: captures "contract.<kind>" spans
//   - ContextualLoggerSpy: captures context-aware log calls
//   - LogHandlerSpy: captures slog records written by the router and the example server
//
// The collector and logger spies take a recordCalls flag; with false they satisfy their interface
// and discard everything. LogHandlerSpy always records and can echo to stdout.
package testdoubles
