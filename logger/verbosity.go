package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // no flags: results, warnings and errors only
	VerbosityInfo  = 1 // -v: + progress and per-operator summaries
	VerbosityDebug = 2 // -vv: + sampling decisions, adapter requests
	VerbosityTrace = 3 // -vvv: + full prompt/response bodies
)

// VerbosityToLevel maps verbosity flags (-v, -vv, ...) to zap log levels.
//
//	0 (none) -> WarnLevel
//	1 (-v)   -> InfoLevel
//	2+ (-vv) -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogTrace returns true for verbosity >= 3 (-vvv).
// Use this before dumping full prompt or response bodies.
func ShouldLogTrace(verbosity int) bool {
	return verbosity >= VerbosityTrace
}
