package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFormatLevel(t *testing.T) {
	tests := map[any]string{
		"info":    "INF",
		"warn":    "WRN",
		"debug":   "DBG",
		"verbose": "VER",
	}
	for in, want := range tests {
		got := formatLevel(in)
		if !strings.Contains(got, want) {
			t.Fatalf("formatLevel(%v) = %q, want it to contain %q", in, got, want)
		}
	}
}

func TestNewWithOptions_Levels(t *testing.T) {
	if l := NewWithOptions(Options{Env: "dev"}); l.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("dev level = %v", l.GetLevel())
	}
	if l := NewWithOptions(Options{Env: "production"}); l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("production level = %v", l.GetLevel())
	}
	if l := NewWithOptions(Options{Env: "production", Level: "warn"}); l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("explicit level = %v", l.GetLevel())
	}
}

func TestNewWithOptions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	log := NewWithOptions(Options{Env: "production", File: path})
	log.Info().Str("stream", "resp_1").Msg("stream finished")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"stream":"resp_1"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}
