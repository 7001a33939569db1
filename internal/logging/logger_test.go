package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handiism/tubealbum/internal/logging"
)

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "pool").Warn("item failed",
		logging.String(logging.FieldItemID, "abc"),
		logging.String(logging.FieldStage, "fetch"),
		logging.Error(errors.New("network down")),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)

	line := buf.String()
	for _, want := range []string{
		" WARN pool: item failed",
		"item_id=abc",
		"stage=fetch",
		`error="network down"`,
		"elapsed=1.5s",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("console line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component should be rendered as a prefix, got %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Error("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("info/debug records should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "ERROR shown") {
		t.Errorf("error record missing: %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", logging.Int("count", 3))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json record: %v", err)
	}
	if record["level"] != "info" {
		t.Errorf("level = %v, want info", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Error("expected ts key")
	}
	if record["count"] != float64(3) {
		t.Errorf("count = %v, want 3", record["count"])
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tubealbum.log")
	logger, err := logging.New(logging.Options{OutputPaths: []string{path, path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("to file")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(content), "to file") != 1 {
		t.Errorf("expected exactly one record, got %q", content)
	}
}

func TestNopLoggers(t *testing.T) {
	logging.NewNop().Error("discarded")
	logging.OrNop(nil).Info("discarded")
	logging.NewComponentLogger(nil, "x").Info("discarded")
}
