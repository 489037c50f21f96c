package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestWriterLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "test"))

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	log.Warn("visible", Int("n", 3), Err(errors.New("boom")))
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" {
		t.Fatalf("comp = %v, want test", m["comp"])
	}
	if m["n"] != float64(3) {
		t.Fatalf("n = %v, want 3", m["n"])
	}
	if m["message"] != "visible" {
		t.Fatalf("message = %v", m["message"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("expected caller field, got %v", m)
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("nothing happens")
	if Nop().IsZero() {
		t.Fatal("Nop logger should not report IsZero")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in, LevelInfo); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
