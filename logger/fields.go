package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across vidmask.
// Use these constants instead of raw strings.
const (
	// Identity
	FieldSessionID = "session_id"
	FieldComponent = "component"
	FieldRuntime   = "runtime"

	// Frame geometry
	FieldPipeline = "pipeline"
	FieldWidth    = "width"
	FieldHeight   = "height"
	FieldFormat   = "format"
	FieldMaskType = "mask_type"

	// Model
	FieldModelWidth  = "model_width"
	FieldModelHeight = "model_height"
	FieldSpecIndex   = "spec_index"
	FieldTier        = "tier"

	// Timing
	FieldDurationMS = "duration_ms"

	// Outcome
	FieldStatus = "status"
	FieldError  = "error"
	FieldCount  = "count"

	// Files
	FieldPath = "path"

	FieldSymbol = "symbol"
)

type contextKey string

const sessionIDKey contextKey = "logger_session_id"

// WithSessionID adds an engine session ID to the context for logging
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, FieldSessionID, id)
	}
	return fields
}

// LoggerFromContext returns the global logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Engine struct {
//	    log *zap.SugaredLogger
//	}
//
//	e.log = logger.ComponentLogger("segment.engine")
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
//	sessionLog := logger.ChildLogger(base, logger.FieldSessionID, id)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
