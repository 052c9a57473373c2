package logger

import (
	"github.com/teranos/vidmask/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// The symbol is attached as a structured field, never in the message,
// which keeps messages clean and logs queryable by component.
//
//	logger.SegInfow("Backend started", logger.FieldPipeline, p)

func withSymbol(symbol string, keysAndValues []interface{}) []interface{} {
	return append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
}

// SegInfow logs an info message with the Seg symbol (◐)
func SegInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.Seg, keysAndValues)...)
	}
}

// SegWarnw logs a warning with the Seg symbol (◐)
func SegWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, withSymbol(sym.Seg, keysAndValues)...)
	}
}

// WatchInfow logs an info message with the Watch symbol (⟳)
func WatchInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.Watch, keysAndValues)...)
	}
}

// AMInfow logs an info message with the AM symbol (≡)
func AMInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.AM, keysAndValues)...)
	}
}

// SymbolInfow logs with any symbol
func SymbolInfow(symbol, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(symbol, keysAndValues)...)
	}
}

// Instance logger wrappers, for components holding their own logger.
//
//	e.seglog = logger.AddSegSymbol(e.log)

// AddSegSymbol wraps a logger with the Seg symbol (◐)
func AddSegSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Seg)
}

// AddWatchSymbol wraps a logger with the Watch symbol (⟳)
func AddWatchSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Watch)
}

// AddInferSymbol wraps a logger with the Infer symbol (⧉)
func AddInferSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Infer)
}

// AddResolveSymbol wraps a logger with the Resolve symbol (⌖)
func AddResolveSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Resolve)
}

// AddOpenSymbol wraps a logger with the Open symbol (✿)
func AddOpenSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Open)
}

// AddCloseSymbol wraps a logger with the Close symbol (❀)
func AddCloseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Close)
}
