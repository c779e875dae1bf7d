package columns

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format controls how extracted values are turned into text: a locale for
// number formatting and a layout for timestamps. A nil *Format is valid and
// behaves like DefaultFormat().
type Format struct {
	printer  *message.Printer
	tsLayout string
}

// NewFormat builds a Format for the given locale and timestamp layout.
// An empty layout falls back to RFC 3339 with nanoseconds.
func NewFormat(tag language.Tag, tsLayout string) *Format {
	if tsLayout == "" {
		tsLayout = time.RFC3339Nano
	}
	return &Format{printer: message.NewPrinter(tag), tsLayout: tsLayout}
}

// DefaultFormat returns the Format used when none is configured:
// English locale, RFC 3339 timestamps.
func DefaultFormat() *Format { return NewFormat(language.English, "") }

// Sprint renders a single value as text. Strings pass through untouched;
// times use the configured layout; everything else goes through the locale
// printer.
func (f *Format) Sprint(v any) string {
	if f == nil {
		f = DefaultFormat()
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(f.tsLayout)
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return f.printer.Sprint(v)
	}
}

// Time renders a timestamp with the configured layout.
func (f *Format) Time(t time.Time) string {
	if f == nil {
		f = DefaultFormat()
	}
	return t.Format(f.tsLayout)
}
