package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Verbosity level constants for CLI flag counts.
//
// These control WHAT categories of output are shown, not just log severity.
// See output.go for the category system.
//
//	if logger.ShouldOutput(verbosity, logger.OutputFrameTiming) {
//	    fmt.Printf("frame %d took %s\n", i, d)
//	}
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + backend start, resolved paths, reloads
	VerbosityDebug = 2 // -vv: + per-frame timing, config patches
	VerbosityTrace = 3 // -vvv: + buffer reallocation, runtime calls
	VerbosityAll   = 4 // -vvvv: + mask statistics dumps
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
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

// LevelName describes a verbosity as its flag and the output categories
// it adds to the defaults, e.g. "-v (backend, resolve, reload)".
func LevelName(verbosity int) string {
	if verbosity <= VerbosityUser {
		return "default"
	}
	if verbosity > VerbosityAll {
		verbosity = VerbosityAll
	}
	var extra []string
	for c := OutputResults; c <= OutputMaskDump; c++ {
		if lvl := categoryLevels[c]; lvl > VerbosityUser && lvl <= verbosity {
			extra = append(extra, categoryNames[c])
		}
	}
	return fmt.Sprintf("-%s (%s)", strings.Repeat("v", verbosity), strings.Join(extra, ", "))
}
