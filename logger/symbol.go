package logger

import (
	"github.com/teranos/tempo/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// The symbol is carried as a structured field, not in the message:
//
//	logger.PulseInfow("Tick evaluated", "due", n)

func withSymbol(symbol string, keysAndValues []interface{}) []interface{} {
	return append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
}

// PulseInfow logs an info message with the Pulse symbol (꩜)
func PulseInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.Pulse, keysAndValues)...)
	}
}

// PulseDebugw logs a debug message with the Pulse symbol (꩜)
func PulseDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, withSymbol(sym.Pulse, keysAndValues)...)
	}
}

// PulseWarnw logs a warning message with the Pulse symbol (꩜)
func PulseWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, withSymbol(sym.Pulse, keysAndValues)...)
	}
}

// PulseErrorw logs an error message with the Pulse symbol (꩜)
func PulseErrorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, withSymbol(sym.Pulse, keysAndValues)...)
	}
}

// PulseOpenInfow logs loop startup with the PulseOpen symbol (✿)
func PulseOpenInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.PulseOpen, keysAndValues)...)
	}
}

// PulseCloseInfow logs loop shutdown with the PulseClose symbol (❀)
func PulseCloseInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, withSymbol(sym.PulseClose, keysAndValues)...)
	}
}

// AddSymbol wraps a logger with a fixed symbol field
func AddSymbol(l *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	return l.With(FieldSymbol, symbol)
}

// AddDBSymbol wraps a logger with the DB symbol (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return AddSymbol(l, sym.DB)
}
