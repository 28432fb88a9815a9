package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docket/internal/config"
	"docket/internal/logging"
)

func readLogLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestNewJSONWritesStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docket.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("pass complete", logging.Int("count", 3), logging.String(logging.FieldJurisdiction, "US-CA"))

	lines := readLogLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(lines))
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["msg"] != "pass complete" {
		t.Fatalf("msg = %v, want %q", record["msg"], "pass complete")
	}
	if record["level"] != "info" {
		t.Fatalf("level = %v, want %q", record["level"], "info")
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts key in log record")
	}
	if record["jurisdiction"] != "US-CA" {
		t.Fatalf("jurisdiction = %v, want %q", record["jurisdiction"], "US-CA")
	}
}

func TestNewTextFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docket.log")

	logger, err := logging.New(logging.Options{
		Format:           "text",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("text message")

	lines := readLogLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "level=info") {
		t.Fatalf("expected level=info in text output, got %q", lines[0])
	}
}

func TestNewOmitsSourceAboveDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "info.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	lines := readLogLines(t, logPath)
	if strings.Contains(lines[0], ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", lines[0])
	}
}

func TestNewIncludesSourceAtDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	lines := readLogLines(t, logPath)
	if !strings.Contains(lines[0], ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", lines[0])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docket.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "invalid",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("suppressed")
	logger.Info("emitted")

	lines := readLogLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "emitted") {
		t.Fatalf("expected info record, got %q", lines[0])
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}

	logger.Info("daemon starting")

	lines := readLogLines(t, cfg.LogFilePath())
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line in %s, got %d", cfg.LogFilePath(), len(lines))
	}
}

func TestNewComponentLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docket.log")

	base, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(base, "scheduler").Info("pass starting")

	lines := readLogLines(t, logPath)
	if !strings.Contains(lines[0], `"component":"scheduler"`) {
		t.Fatalf("expected component attribute, got %q", lines[0])
	}

	// A nil base falls back to a no-op logger instead of panicking.
	logging.NewComponentLogger(nil, "monitor").Info("discarded")
}
