package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"walletconnect/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for in, want := range cases {
		got, ok := logging.ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := logging.ParseLevel("loud"); ok {
		t.Error("unknown level accepted")
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	t.Setenv(logging.EnvLogLevel, "")
	var buf bytes.Buffer
	l := logging.New("test", "warn", &buf)
	l.Info().Msg("hidden")
	cl := logging.Component(l, "relay")
	cl.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("info line written at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "relay") {
		t.Fatalf("missing warn line: %q", out)
	}
}
