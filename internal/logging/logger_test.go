package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected format error")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = dir
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("hello", logging.String("component", "test"))

	data, err := os.ReadFile(filepath.Join(dir, "scriptorium.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file missing record: %s", data)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("log file missing attr: %s", data)
	}
}

func TestWithContextAddsStandardFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-42")
	ctx = services.WithSandbox(ctx, "sb-1")
	logging.WithContext(ctx, logger).Info("scoped")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"job_id":"job-42"`, `"sandbox":"sb-1"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("missing %s in %s", want, data)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "scriptorium-old.log")
	fresh := filepath.Join(dir, "scriptorium-new.log")
	for _, path := range []string{old, fresh} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	ancient := time.Now().AddDate(0, 0, -90)
	if err := os.Chtimes(old, ancient, ancient); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), dir, "scriptorium-*.log", 30)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old log to be pruned")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("expected fresh log to survive")
	}
}
