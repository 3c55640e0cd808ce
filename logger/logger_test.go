package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func captureOutput(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel(prev)
	})
	return &buf
}

func TestLineFormat(t *testing.T) {
	buf := captureOutput(t, TRACE)

	Info("gattc", "conn %d: connected", 3)
	Warn("", "no prefix")

	want := "[gattc INFO ] conn 3: connected\n[WARN ] no prefix\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, WARN)

	Trace("wire", "trace")
	Debug("wire", "debug")
	Info("wire", "info")
	Warn("wire", "warn")
	Error("wire", "error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "[wire WARN ]") || !strings.HasPrefix(lines[1], "[wire ERROR]") {
		t.Errorf("unexpected lines %q", lines)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace": TRACE,
		"DEBUG": DEBUG,
		"info":  INFO,
		"Warn":  WARN,
		"error": ERROR,
		"loud":  INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestToJSON(t *testing.T) {
	plain := ToJSON(map[string]int{"mtu": 23})
	if !strings.Contains(plain, `"mtu": 23`) {
		t.Errorf("ToJSON(map) = %s", plain)
	}

	msg, err := structpb.NewStruct(map[string]interface{}{"uuid": "180d"})
	if err != nil {
		t.Fatal(err)
	}
	// protojson output is not byte-stable, only check the content.
	out := ToJSON(msg)
	if !strings.Contains(out, `"uuid"`) || !strings.Contains(out, `"180d"`) {
		t.Errorf("ToJSON(proto) = %s", out)
	}
}

func TestDebugJSONRespectsLevel(t *testing.T) {
	buf := captureOutput(t, INFO)
	DebugJSON("report", "services", []string{"180d"})
	if buf.Len() != 0 {
		t.Errorf("DebugJSON logged at INFO: %q", buf.String())
	}

	SetLevel(DEBUG)
	DebugJSON("report", "services", []string{"180d"})
	if !strings.HasPrefix(buf.String(), "[report DEBUG] services:\n[") {
		t.Errorf("DebugJSON output = %q", buf.String())
	}
}

func TestTraceJSONRespectsLevel(t *testing.T) {
	buf := captureOutput(t, DEBUG)
	TraceJSON("gattdisc", "config", map[string]int{"mtu": 247})
	if buf.Len() != 0 {
		t.Errorf("TraceJSON logged at DEBUG: %q", buf.String())
	}

	SetLevel(TRACE)
	TraceJSON("gattdisc", "config", map[string]int{"mtu": 247})
	want := "[gattdisc TRACE] config:\n{\n  \"mtu\": 247\n}\n"
	if buf.String() != want {
		t.Errorf("TraceJSON output = %q, want %q", buf.String(), want)
	}
}
