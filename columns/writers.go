// Package columns defines the per-column value extractors used by the
// Postgres log sink. A Writer is bound to one destination column: it names
// the SQL type used when the sink generates DDL, and it pulls a typed value
// out of a log event for each written row.
//
// Writers are immutable after construction and must be pure: the same event
// and format always yield the same value, with no side effects. A nil value
// means SQL NULL for that row.
package columns

import (
	"encoding/json"

	"pgsink/pkg/event"
)

// Writer extracts one column's value from a log event.
type Writer interface {
	// SQLType is the type token used for this column in CREATE TABLE.
	SQLType() string

	// Value extracts the column value for one event. nil means SQL NULL.
	Value(e *event.LogEvent, f *Format) any
}

// TimestampWriter writes the event timestamp, normalized to UTC.
// The retention pruner keys off the first column using this writer.
type TimestampWriter struct{}

func (TimestampWriter) SQLType() string { return "timestamptz" }

func (TimestampWriter) Value(e *event.LogEvent, _ *Format) any {
	return e.Timestamp.UTC()
}

// LevelWriter writes the event severity, either as its lower-case name or,
// with AsOrdinal set, as the numeric rank.
type LevelWriter struct {
	AsOrdinal bool
}

func (w LevelWriter) SQLType() string {
	if w.AsOrdinal {
		return "integer"
	}
	return "text"
}

func (w LevelWriter) Value(e *event.LogEvent, _ *Format) any {
	if w.AsOrdinal {
		return int(e.Level)
	}
	return e.Level.String()
}

// MessageTemplateWriter writes the raw message template, holes and all.
type MessageTemplateWriter struct{}

func (MessageTemplateWriter) SQLType() string { return "text" }

func (MessageTemplateWriter) Value(e *event.LogEvent, _ *Format) any {
	return e.MessageTemplate
}

// RenderedMessageWriter writes the message template with bound properties
// substituted in, formatted per the sink's Format.
type RenderedMessageWriter struct{}

func (RenderedMessageWriter) SQLType() string { return "text" }

func (RenderedMessageWriter) Value(e *event.LogEvent, f *Format) any {
	return e.RenderMessage(f.Sprint)
}

// ExceptionWriter writes the event's associated error text, or NULL when the
// event carries no error.
type ExceptionWriter struct{}

func (ExceptionWriter) SQLType() string { return "text" }

func (ExceptionWriter) Value(e *event.LogEvent, _ *Format) any {
	if e.Err == nil {
		return nil
	}
	return e.Err.Error()
}

// PropertyWriter writes one named property as text, or NULL when the event
// does not bind it.
type PropertyWriter struct {
	Name string
}

func (PropertyWriter) SQLType() string { return "text" }

func (w PropertyWriter) Value(e *event.LogEvent, f *Format) any {
	v, ok := e.Property(w.Name)
	if !ok {
		return nil
	}
	return f.Sprint(v)
}

// PropertiesWriter writes the whole property bag as a JSON object.
type PropertiesWriter struct{}

func (PropertiesWriter) SQLType() string { return "jsonb" }

func (PropertiesWriter) Value(e *event.LogEvent, _ *Format) any {
	if len(e.Properties) == 0 {
		return "{}"
	}
	b, err := json.Marshal(e.Properties)
	if err != nil {
		// Unmarshalable property values (channels, funcs) degrade to NULL
		// rather than failing the whole batch.
		return nil
	}
	return string(b)
}

// RawWriter is the escape hatch: a caller-chosen SQL type plus a caller-
// supplied extraction func. A nil Extract always writes NULL.
type RawWriter struct {
	Type    string
	Extract func(e *event.LogEvent, f *Format) any
}

func (w RawWriter) SQLType() string { return w.Type }

func (w RawWriter) Value(e *event.LogEvent, f *Format) any {
	if w.Extract == nil {
		return nil
	}
	return w.Extract(e, f)
}
