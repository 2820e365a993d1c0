package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shotdetect/internal/logging"
	"shotdetect/internal/services"
	"shotdetect/internal/testsupport"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("run started", logging.String("input", "clip.mp4"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log file is not json: %v (%q)", err, data)
	}
	if entry["msg"] != "run started" || entry["input"] != "clip.mp4" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := buf.String(); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	if content := buf.String(); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleHeaderLiftsRunAndStage(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "0123456789abcdef")
	ctx = services.WithStage(ctx, "video")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "segmenter"))
	log.Info("shot finalized", logging.Int(logging.FieldShotID, 3))

	text := buf.String()
	for _, want := range []string{"INFO [segmenter] run 01234567 (video) – shot finalized", "    - shot_id: 3"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %q", want, text)
		}
	}
}

func TestJSONConsoleHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "warning", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"msg":"kept"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "image save failed", "image_save_failed",
		logging.String(logging.FieldErrorHint, "check disk space"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "image_save_failed" {
		t.Fatalf("event_type = %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] != "check disk space" {
		t.Fatalf("error_hint overwritten: %v", entry[logging.FieldErrorHint])
	}
	if entry[logging.FieldImpact] == nil {
		t.Fatal("impact default missing")
	}
}

func TestNilLoggersAreSafe(t *testing.T) {
	logging.WarnWithContext(nil, "ignored", "noop")
	logging.ErrorWithContext(nil, "ignored", "noop")
	if logging.NewComponentLogger(nil, "x") == nil {
		t.Fatal("expected nop-backed logger")
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected nop logger")
	}
}
