package logger

// Output categories control WHAT types of information the CLI prints at
// each verbosity level, independent of log severity.
//
//	0 (default) - run summary, errors with hints
//	1 (-v)      - + backend start, resolved paths, tuning reloads
//	2 (-vv)     - + per-frame timing, lightweight patches
//	3 (-vvv)    - + buffer reallocation, runtime restarts
//	4 (-vvvv)   - + per-frame mask coverage dumps

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	OutputResults OutputCategory = iota
	OutputErrors

	OutputBackend
	OutputResolve
	OutputReload

	OutputFrameTiming
	OutputConfigPatch

	OutputBuffers
	OutputRestarts

	OutputMaskDump
)

var categoryLevels = map[OutputCategory]int{
	OutputResults:     VerbosityUser,
	OutputErrors:      VerbosityUser,
	OutputBackend:     VerbosityInfo,
	OutputResolve:     VerbosityInfo,
	OutputReload:      VerbosityInfo,
	OutputFrameTiming: VerbosityDebug,
	OutputConfigPatch: VerbosityDebug,
	OutputBuffers:     VerbosityTrace,
	OutputRestarts:    VerbosityTrace,
	OutputMaskDump:    VerbosityAll,
}

var categoryNames = map[OutputCategory]string{
	OutputResults:     "results",
	OutputErrors:      "errors",
	OutputBackend:     "backend",
	OutputResolve:     "resolve",
	OutputReload:      "reload",
	OutputFrameTiming: "frame-timing",
	OutputConfigPatch: "config-patch",
	OutputBuffers:     "buffers",
	OutputRestarts:    "restarts",
	OutputMaskDump:    "mask-dump",
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}
