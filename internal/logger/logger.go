// Package logger wraps zap for the daemon's operational log and its
// per-cycle data log.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger with a level that can change at runtime.
type Logger struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
}

// New returns a console logger writing to w. Verbose enables debug output.
func New(w io.Writer, verbose bool) *Logger {
	level := zap.NewAtomicLevelAt(levelFor(verbose))

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(w)), level)
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
		level:         level,
	}
}

// NewStderr returns a console logger on stderr.
func NewStderr(verbose bool) *Logger {
	return New(os.Stderr, verbose)
}

// Nop returns a logger that discards everything. Useful for tests.
func Nop() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		level:         zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

// SetVerbose switches between debug and info level.
func (l *Logger) SetVerbose(verbose bool) {
	l.level.SetLevel(levelFor(verbose))
}

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

func levelFor(verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
