package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/creachadair/parley/internal/logging"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{" DEBUG ", zerolog.DebugLevel},
		{"frames", zerolog.TraceLevel},
		{"trace", zerolog.TraceLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
	}
	for _, tc := range tests {
		got, err := logging.ParseLevel(tc.input)
		if err != nil {
			t.Errorf("ParseLevel(%q): unexpected error: %v", tc.input, err)
		} else if got != tc.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tc.input, got, tc.want)
		}
	}
	if got, err := logging.ParseLevel("loud"); err == nil {
		t.Errorf("ParseLevel(loud): got %v, want error", got)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "parley-test", zerolog.InfoLevel, false)

	log.Debug().Msg("hidden detail")
	log.Info().Str("peer", "10.0.0.1:2112").Msg("session started")

	out := buf.String()
	for _, want := range []string{"session started", "parley-test", "10.0.0.1:2112"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden detail") {
		t.Errorf("Output includes a message below the log level:\n%s", out)
	}
	if n := strings.Count(out, "\n"); n != 1 {
		t.Errorf("Output has %d lines, want 1:\n%s", n, out)
	}
}
