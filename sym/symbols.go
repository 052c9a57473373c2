// Package sym defines canonical symbols for vidmask components.
// These symbols are stable across log output and CLI headings.
package sym

// Component glyphs, attached to log lines as the "symbol" field.
const (
	Seg     = "◐" // segment engine facade and frame path
	AM      = "≡" // am configuration and system settings
	Watch   = "⟳" // tuning file and config hot reload
	Resolve = "⌖" // configuration path resolution
	Infer   = "⧉" // vendor inference runtime boundary
	Caps    = "⊞" // system capabilities
	History = "⌛" // recorded run summaries
	Serve   = "⇄" // websocket segmentation server
)

// Lifecycle glyphs.
const (
	Open  = "✿" // engine start, backend start
	Close = "❀" // engine close, backend release
)

// entry binds a glyph to its CLI command and description.
type entry struct {
	glyph       string
	command     string
	description string
}

var registry = []entry{
	{Seg, "run", "Segment frames through an engine"},
	{AM, "am", "Configuration and system settings"},
	{Resolve, "resolve", "Show tuning and model paths"},
	{Caps, "caps", "System capabilities and runtime availability"},
	{History, "history", "Recorded run summaries"},
	{Serve, "serve", "Segment frames sent over a websocket"},
	{Watch, "", "Tuning file and configuration hot reload"},
	{Infer, "", "Vendor inference runtime boundary"},
}

// SymbolToCommand maps glyph strings to their CLI command equivalents.
var SymbolToCommand = map[string]string{}

// CommandToSymbol maps CLI commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{}

// Descriptions maps glyphs to human-readable explanations.
var Descriptions = map[string]string{}

func init() {
	for _, e := range registry {
		Descriptions[e.glyph] = e.description
		if e.command == "" {
			continue
		}
		SymbolToCommand[e.glyph] = e.command
		CommandToSymbol[e.command] = e.glyph
	}
}
