package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/config"
)

func TestFilePathForDB(t *testing.T) {
	if got := FilePathForDB(""); got != DefaultLogFilePath {
		t.Fatalf("expected default path, got %q", got)
	}

	got := FilePathForDB("/data/inventory/item_database")
	if got != filepath.Join("/data/inventory", DefaultLogFilePath) {
		t.Fatalf("expected log next to database, got %q", got)
	}
}

func TestLevelForVerbosity(t *testing.T) {
	cases := []struct {
		verbosity int
		want      string
	}{
		{0, "info"},
		{1, "debug"},
		{2, "trace"},
		{5, "trace"},
	}
	for _, tc := range cases {
		if got := LevelForVerbosity(tc.verbosity, "info"); got != tc.want {
			t.Fatalf("verbosity %d: expected %q, got %q", tc.verbosity, tc.want, got)
		}
	}
}

func TestApplyOutputs_WritesConsoleAndFile(t *testing.T) {
	original := log.Logger
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = original
		zerolog.SetGlobalLevel(originalLevel)
	}()

	dir := t.TempDir()
	cfg := config.Default().Log
	cfg.File = filepath.Join(dir, "logs", "inventory.log")

	var console bytes.Buffer
	ApplyLevel("debug")
	applyOutputs(cfg, &console, "")

	log.Debug().Str("item_id", "42").Msg("hello from test")

	if !strings.Contains(console.String(), "hello from test") {
		t.Fatalf("expected console output, got %q", console.String())
	}

	data, err := os.ReadFile(cfg.File)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("expected log file to contain message, got %q", string(data))
	}
}
