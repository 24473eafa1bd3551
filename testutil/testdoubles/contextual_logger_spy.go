package testdoubles

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

// Log levels recorded by the logger spies.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// SpyLogRecord represents a recorded log call.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// Arg returns the value logged under key, or nil.
func (r SpyLogRecord) Arg(key string) any {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1]
		}
	}

	return nil
}

type logRecorder struct {
	records     []SpyLogRecord
	mu          sync.Mutex
	recordCalls bool
}

func (r *logRecorder) record(ctx context.Context, level, msg string, args []any) {
	if !r.recordCalls {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, SpyLogRecord{Level: level, Message: msg, Args: args, Context: ctx})
}

// GetRecords returns a copy of all records of the given level.
func (r *logRecorder) GetRecords(level string) []SpyLogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []SpyLogRecord
	for _, record := range r.records {
		if record.Level == level {
			out = append(out, record)
		}
	}

	return out
}

// GetTotalRecordCount returns the total number of log records across all levels.
func (r *logRecorder) GetTotalRecordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

// Reset clears all recorded log calls.
func (r *logRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = r.records[:0]
}

func (r *logRecorder) has(level, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

// HasDebugLog checks if a debug log with the specified message exists.
func (r *logRecorder) HasDebugLog(message string) bool { return r.has(LevelDebug, message) }

// HasInfoLog checks if an info log with the specified message exists.
func (r *logRecorder) HasInfoLog(message string) bool { return r.has(LevelInfo, message) }

// HasWarnLog checks if a warn log with the specified message exists.
func (r *logRecorder) HasWarnLog(message string) bool { return r.has(LevelWarn, message) }

// HasErrorLog checks if an error log with the specified message exists.
func (r *logRecorder) HasErrorLog(message string) bool { return r.has(LevelError, message) }

// ContextualLoggerSpy is a contracts.ContextualLogger that captures log calls for testing.
type ContextualLoggerSpy struct {
	logRecorder
}

// NewContextualLoggerSpy creates a new ContextualLoggerSpy.
func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{logRecorder{recordCalls: recordCalls}}
}

// DebugContext implements contracts.ContextualLogger.
func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelDebug, msg, args)
}

// InfoContext implements contracts.ContextualLogger.
func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelInfo, msg, args)
}

// WarnContext implements contracts.ContextualLogger.
func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelWarn, msg, args)
}

// ErrorContext implements contracts.ContextualLogger.
func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelError, msg, args)
}

// LoggerSpy is a plain contracts.Logger that captures log calls for testing.
type LoggerSpy struct {
	logRecorder
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy(recordCalls bool) *LoggerSpy {
	return &LoggerSpy{logRecorder{recordCalls: recordCalls}}
}

// Debug implements contracts.Logger.
func (s *LoggerSpy) Debug(msg string, args ...any) { s.record(context.Background(), LevelDebug, msg, args) }

// Info implements contracts.Logger.
func (s *LoggerSpy) Info(msg string, args ...any) { s.record(context.Background(), LevelInfo, msg, args) }

// Warn implements contracts.Logger.
func (s *LoggerSpy) Warn(msg string, args ...any) { s.record(context.Background(), LevelWarn, msg, args) }

// Error implements contracts.Logger.
func (s *LoggerSpy) Error(msg string, args ...any) { s.record(context.Background(), LevelError, msg, args) }

var (
	_ contracts.ContextualLogger = (*ContextualLoggerSpy)(nil)
	_ contracts.Logger           = (*LoggerSpy)(nil)
)
