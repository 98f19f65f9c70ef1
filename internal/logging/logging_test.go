package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"  INFO  ", slog.LevelInfo, false},
		{"verbose", 0, true},
	}

	for _, tc := range cases {
		got, err := parseLevel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseLevel(%q): expected error, got level %v", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLevel(%q): unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("info", "json", &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}

	logger.Info("message written", "id", "m1")

	out := buf.String()
	if !strings.Contains(out, `"msg":"message written"`) {
		t.Errorf("expected JSON log line, got %q", out)
	}
	if !strings.Contains(out, `"id":"m1"`) {
		t.Errorf("expected id attribute in log line, got %q", out)
	}
}

func TestNewLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", "json", &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("info line leaked past warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNewLoggerBadFormat(t *testing.T) {
	if _, err := newLogger("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
