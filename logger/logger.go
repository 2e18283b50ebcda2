// Package logger provides the global structured logger for kgmorph.
//
// The logger is a zap SugaredLogger, initialized once by the CLI entry point
// and consumed everywhere else via logger.Logger (usually Named() per
// component). Until Initialize is called it is a safe no-op logger, so
// library code can log unconditionally.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance.
	Logger *zap.SugaredLogger
	// JSONOutput tracks whether machine-readable output was requested.
	JSONOutput bool
)

func init() {
	// Safe no-op logger at package load time. Prevents nil pointer panics
	// if the logger is used before Initialize() is called.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger.
//
// jsonOutput selects zap's production JSON encoding for machine consumption;
// otherwise a calm console encoder is used. verbosity follows the CLI -v
// count (see verbosity.go).
func Initialize(jsonOutput bool, verbosity int) error {
	JSONOutput = jsonOutput

	level := VerbosityToLevel(verbosity)

	var zapLogger *zap.Logger
	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		var err error
		zapLogger, err = config.Build()
		if err != nil {
			return err
		}
	} else {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encoderCfg),
				zapcore.AddSync(os.Stderr),
				level,
			),
		)
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = Logger.Sync()
}
