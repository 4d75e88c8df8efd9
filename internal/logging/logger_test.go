package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		env  string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}
	for _, tt := range tests {
		t.Setenv(envLevel, tt.env)
		if got := Level(); got != tt.want {
			t.Errorf("Level() with %q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	t.Setenv(envLevel, "warn")
	t.Setenv(envPrefix, "")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	lg.Info("hidden")
	lg.Warn("shown", "struct", "Player")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "metagen") || !strings.Contains(out, "shown") || !strings.Contains(out, "struct=Player") {
		t.Errorf("unexpected output %q", out)
	}
	if err := lg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
