package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCallsBeforeInitAreDiscarded(t *testing.T) {
	Close()
	Info("nothing")
	Error("nothing", "k", "v")
	WithPrefix("track").Info("still nothing")
}

func TestInitWriterLevel(t *testing.T) {
	defer Close()
	var buf bytes.Buffer
	if err := InitWriter(&buf, "warn"); err != nil {
		t.Fatalf("InitWriter() error = %v", err)
	}

	Info("hidden")
	Warn("shown", "item", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "item=42") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestInitWriterRejectsBadLevel(t *testing.T) {
	defer Close()
	if err := InitWriter(&bytes.Buffer{}, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInitCreatesDatedFile(t *testing.T) {
	defer Close()
	dir := t.TempDir()
	if err := Init(dir, "debug"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Debug("hello")
	Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "logs", "minifeed-*.log"))
	if len(matches) != 1 {
		t.Fatalf("log files = %v", matches)
	}
	data, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log content = %q", data)
	}
}
