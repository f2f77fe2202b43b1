package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoggerWritesToBothOutputs(t *testing.T) {
	var console, file bytes.Buffer
	logger := newLogger(&console, &file, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("device", "Headset Mic").Msg("visible")

	for name, buf := range map[string]*bytes.Buffer{"console": &console, "file": &file} {
		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("%s: info message should be filtered at warn level", name)
		}
		if !strings.Contains(out, "visible") || !strings.Contains(out, "Headset Mic") {
			t.Errorf("%s: expected warn message with fields, got %q", name, out)
		}
	}
}

func TestLogPathIsNamespaced(t *testing.T) {
	if !strings.HasSuffix(LogPath(), "audiophage.log") {
		t.Errorf("unexpected log path %q", LogPath())
	}
}
