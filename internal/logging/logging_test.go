package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	log.Infow("round started", "file", "a.py", "round", 1)
	log.Debugw("hidden")
	closeFn()

	out := buf.String()
	if !strings.Contains(out, "round started") || !strings.Contains(out, "a.py") {
		t.Errorf("console output missing entry: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug entry should be filtered at info level")
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixloop.log")

	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "debug", File: path, MaxSizeMB: 1, Console: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	log.Debugw("ticket filed", "key", "FIX-1")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"key":"FIX-1"`) {
		t.Errorf("log file should hold JSON entry, got %q", data)
	}
	if !strings.Contains(string(data), `"time"`) {
		t.Errorf("log file should use time key, got %q", data)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
