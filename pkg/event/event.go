// Package event defines the structured log event consumed by the Postgres
// sink. Events are produced by a logging front-end (or by the cmd/pgsink
// reader) and are treated as read-only once constructed: the sink and all
// column writers only ever inspect them.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of a log event.
type Level int8

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"trace", "debug", "info", "warn", "error", "fatal"}

// String returns the lower-case level name, or "unknown(N)" for values
// outside the defined range.
func (l Level) String() string {
	if l < TraceLevel || int(l) >= len(levelNames) {
		return fmt.Sprintf("unknown(%d)", int8(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name (case-insensitive; "warning" and
// "err" aliases accepted) into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info", "information":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error", "err":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown level %q", s)
}

// LogEvent is one logging call: a timestamp, a severity, a message template
// with named holes (e.g. "user {Name} logged in"), the bound property values,
// and an optional associated error.
type LogEvent struct {
	Timestamp       time.Time
	Level           Level
	MessageTemplate string
	Properties      map[string]any
	Err             error
}

// Property returns the named property value and whether it was bound.
func (e *LogEvent) Property(name string) (any, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

// RenderMessage substitutes bound properties into the message template.
// Holes are written as {Name}; "{{" and "}}" are literal braces. Holes with
// no bound property are left verbatim so that template typos stay visible in
// the stored message. The format func turns a property value into text; a nil
// func falls back to fmt.Sprint.
func (e *LogEvent) RenderMessage(format func(any) string) string {
	if format == nil {
		format = func(v any) string { return fmt.Sprint(v) }
	}
	t := e.MessageTemplate
	var b strings.Builder
	b.Grow(len(t))
	for i := 0; i < len(t); {
		c := t[i]
		switch {
		case c == '{' && i+1 < len(t) && t[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(t) && t[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(t[i:], '}')
			if end < 0 {
				b.WriteString(t[i:])
				return b.String()
			}
			name := t[i+1 : i+end]
			if v, ok := e.Properties[name]; ok && name != "" {
				b.WriteString(format(v))
			} else {
				b.WriteString(t[i : i+end+1])
			}
			i += end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
