// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestComponentLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(GetLevel())

	SetLevel(LevelWarn)
	l := For("window")
	l.Infof("dropped %d", 1)
	l.Warnf("short frame %d", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] window: short frame 2") {
		t.Errorf("missing component prefix in %q", out)
	}
}

func TestConfigure(t *testing.T) {
	defer SetLevel(GetLevel())

	if err := Configure("error", false); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if GetLevel() != LevelError {
		t.Errorf("level = %s, want ERROR", GetLevel())
	}
	if err := Configure("error", true); err != nil {
		t.Fatalf("Configure debug: %v", err)
	}
	if GetLevel() != LevelDebug {
		t.Errorf("debug flag should force DEBUG, got %s", GetLevel())
	}
	if err := Configure("nope", false); err == nil {
		t.Error("expected error for unknown level")
	}
	if GetLevel() != LevelInfo {
		t.Errorf("unknown level should fall back to INFO, got %s", GetLevel())
	}
}
