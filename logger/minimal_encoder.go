package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

type palette struct {
	time      string
	component string
	symbol    string
	id        string
	number    string
	fg        string
	warn      string
	warnBg    string
	err       string
	errBg     string
}

var themes = map[string]palette{
	"everforest": {
		time:      "\x1b[38;5;107m",
		component: "\x1b[38;5;208m",
		symbol:    "\x1b[38;5;108m",
		id:        "\x1b[38;5;109m",
		number:    "\x1b[38;5;108m",
		fg:        "\x1b[38;5;223m",
		warn:      "\x1b[38;5;179m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;52m",
	},
	"gruvbox": {
		time:      "\x1b[38;5;108m",
		component: "\x1b[38;5;214m",
		symbol:    "\x1b[38;5;142m",
		id:        "\x1b[38;5;109m",
		number:    "\x1b[38;5;175m",
		fg:        "\x1b[38;5;223m",
		warn:      "\x1b[38;5;214m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;88m",
	},
}

var currentTheme = "everforest"

// SetTheme configures the color scheme for console output.
// Unknown names are ignored.
func SetTheme(theme string) {
	if _, ok := themes[theme]; ok {
		currentTheme = theme
	}
}

func colors() palette {
	return themes[currentTheme]
}

// minimalEncoder is a compact console encoder:
//
//	13:04:35  s.engine  ◐ Backend started  a1b2c3d4 640x480 pipeline=portable-cpu
//
// Every field is printed; well-known frame fields get a short form.
// Context fields added through With() accumulate in the embedded map encoder.
type minimalEncoder struct {
	*zapcore.MapObjectEncoder
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return &minimalEncoder{MapObjectEncoder: clone}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := colors()
	out := buffer.NewPool().Get()

	out.AppendString(c.time)
	out.AppendString(ent.Time.Format("15:04:05"))
	out.AppendString(colorReset)

	if lvl := levelString(ent.Level, c); lvl != "" {
		out.AppendString("  ")
		out.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		out.AppendString("  ")
		out.AppendString(c.component)
		out.AppendString(abbreviateName(ent.LoggerName))
		out.AppendString(colorReset)
	}

	values := fieldValues(fields)
	for k, v := range enc.Fields {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}

	out.AppendString("  ")
	if s, ok := values[FieldSymbol]; ok {
		out.AppendString(c.symbol + fmt.Sprint(s) + colorReset + " ")
		delete(values, FieldSymbol)
	}
	out.AppendString(c.fg + ent.Message + colorReset)

	if rest := formatValues(values, c); rest != "" {
		out.AppendString("  ")
		out.AppendString(rest)
	}
	out.AppendString("\n")
	return out, nil
}

func levelString(level zapcore.Level, c palette) string {
	switch level {
	case zapcore.DebugLevel, zapcore.InfoLevel:
		return ""
	case zapcore.WarnLevel:
		return colorBold + c.warnBg + c.warn + "WARN" + colorReset
	default:
		return colorBold + c.errBg + c.err + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens component names: segment.engine -> s.engine
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// fieldValues flattens fields of any zap type into a key/value map.
func fieldValues(fields []zapcore.Field) map[string]interface{} {
	m := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(m)
	}
	return m.Fields
}

func formatValues(values map[string]interface{}, c palette) string {
	var parts []string

	if id, ok := values[FieldSessionID]; ok {
		s := fmt.Sprint(id)
		if len(s) > 8 {
			s = s[:8]
		}
		parts = append(parts, c.id+s+colorReset)
		delete(values, FieldSessionID)
	}

	w, hasW := values[FieldWidth]
	h, hasH := values[FieldHeight]
	if hasW && hasH {
		parts = append(parts, fmt.Sprintf("%s%vx%v%s", c.number, w, h, colorReset))
		delete(values, FieldWidth)
		delete(values, FieldHeight)
	}

	if d, ok := values[FieldDurationMS]; ok {
		parts = append(parts, fmt.Sprintf("%s%v%sms", c.number, d, colorReset))
		delete(values, FieldDurationMS)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, values[k]))
	}

	return strings.Join(parts, " ")
}
