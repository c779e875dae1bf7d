package main

import (
	"testing"
	"time"

	"pgsink/pkg/event"
)

// TestParseLine_Full checks a fully populated line maps onto the event.
func TestParseLine_Full(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"ts":"2026-06-01T12:00:00Z","level":"warn","msg":"disk {Disk} full","props":{"Disk":"/dev/sda1"},"error":"ENOSPC"}`)
	ev, err := parseLine(raw)
	if err != nil {
		t.Fatalf("parseLine error: %v", err)
	}
	if !ev.Timestamp.Equal(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
	if ev.Level != event.WarnLevel {
		t.Fatalf("level = %v, want warn", ev.Level)
	}
	if ev.MessageTemplate != "disk {Disk} full" {
		t.Fatalf("template = %q", ev.MessageTemplate)
	}
	if ev.Properties["Disk"] != "/dev/sda1" {
		t.Fatalf("props = %v", ev.Properties)
	}
	if ev.Err == nil || ev.Err.Error() != "ENOSPC" {
		t.Fatalf("err = %v", ev.Err)
	}
}

// TestParseLine_Defaults: missing ts/level default to now/info, missing error
// stays nil.
func TestParseLine_Defaults(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	ev, err := parseLine([]byte(`{"msg":"hello"}`))
	if err != nil {
		t.Fatalf("parseLine error: %v", err)
	}
	if ev.Level != event.InfoLevel {
		t.Fatalf("level = %v, want info", ev.Level)
	}
	if ev.Err != nil {
		t.Fatalf("err = %v, want nil", ev.Err)
	}
	if ev.Timestamp.Before(before) || ev.Timestamp.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("timestamp %v not defaulted to now", ev.Timestamp)
	}
}

// TestParseLine_Malformed covers the rejection paths.
func TestParseLine_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`not json`,
		`{"ts":"yesterday","msg":"x"}`,
		`{"level":"loud","msg":"x"}`,
	} {
		if _, err := parseLine([]byte(raw)); err == nil {
			t.Fatalf("parseLine(%q) accepted malformed input", raw)
		}
	}
}
