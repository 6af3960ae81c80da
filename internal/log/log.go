package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production JSON output is the default;
// format "console" switches to the human readable encoder.
func NewLogger(verbose bool, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.DPanicLevel),
	)
}

func MustNewLogger(verbose bool, format string) *zap.Logger {
	l, err := NewLogger(verbose, format)
	if err != nil {
		panic(fmt.Errorf("could not create new logger: %w", err))
	}
	return l
}
