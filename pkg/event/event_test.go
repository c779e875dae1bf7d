package event

import (
	"fmt"
	"testing"
)

// TestParseLevel covers the canonical names, the accepted aliases, and the
// error path for unknown input.
func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"trace":       TraceLevel,
		"DEBUG":       DebugLevel,
		"info":        InfoLevel,
		"Information": InfoLevel,
		"warn":        WarnLevel,
		"warning":     WarnLevel,
		"error":       ErrorLevel,
		"err":         ErrorLevel,
		"fatal":       FatalLevel,
		" info ":      InfoLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("ParseLevel(\"loud\") expected error")
	}
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	if got := ErrorLevel.String(); got != "error" {
		t.Fatalf("ErrorLevel.String() = %q, want %q", got, "error")
	}
	if got := Level(42).String(); got != "unknown(42)" {
		t.Fatalf("Level(42).String() = %q, want %q", got, "unknown(42)")
	}
}

// TestRenderMessage checks hole substitution, literal brace escapes, unbound
// holes staying verbatim, and an unterminated hole passing through.
func TestRenderMessage(t *testing.T) {
	t.Parallel()

	e := &LogEvent{
		MessageTemplate: "user {Name} made {Count} requests",
		Properties:      map[string]any{"Name": "ada", "Count": 3},
	}
	if got, want := e.RenderMessage(nil), "user ada made 3 requests"; got != want {
		t.Fatalf("RenderMessage = %q, want %q", got, want)
	}

	e = &LogEvent{MessageTemplate: "set {{literal}} and {Missing}", Properties: map[string]any{}}
	if got, want := e.RenderMessage(nil), "set {literal} and {Missing}"; got != want {
		t.Fatalf("RenderMessage = %q, want %q", got, want)
	}

	e = &LogEvent{MessageTemplate: "broken {hole", Properties: map[string]any{"hole": 1}}
	if got, want := e.RenderMessage(nil), "broken {hole"; got != want {
		t.Fatalf("RenderMessage = %q, want %q", got, want)
	}
}

// TestRenderMessage_CustomFormat verifies the caller-supplied formatter is
// applied to property values.
func TestRenderMessage_CustomFormat(t *testing.T) {
	t.Parallel()

	e := &LogEvent{
		MessageTemplate: "{N}",
		Properties:      map[string]any{"N": 2.5},
	}
	got := e.RenderMessage(func(v any) string { return fmt.Sprintf("<%v>", v) })
	if got != "<2.5>" {
		t.Fatalf("RenderMessage custom format = %q, want %q", got, "<2.5>")
	}
}
