// Package logger builds the zap loggers used by the command-line tools.
// Logs go to stderr so stdout stays reserved for the run summary.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger at info level, or debug level when verbose.
func New(verbose bool) *zap.SugaredLogger {
	return NewWithSink(verbose, zapcore.Lock(os.Stderr))
}

// NewWithSink is New writing to sink.
func NewWithSink(verbose bool, sink zapcore.WriteSyncer) *zap.SugaredLogger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	if !verbose {
		enc.CallerKey = ""
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, level)
	opts := []zap.Option{}
	if verbose {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...).Sugar()
}
