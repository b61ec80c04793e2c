package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/weatherservice/internal/config"
)

func TestNewProdWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := New(&buf, &config.AppConfig{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "weatherservice")
	Component(logger, "scheduler").Info("scheduler started", "cron", "5/10 * * * *")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"app":        "weatherservice",
		"version":    "1.2.3",
		"env":        "prod",
		ComponentKey: "scheduler",
		"msg":        "scheduler started",
	} {
		if rec[key] != want {
			t.Fatalf("%s = %v, want %q", key, rec[key], want)
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, rec["time"].(string))
	if err != nil || ts.Location() != time.UTC {
		t.Fatalf("time %v is not UTC (%v)", rec["time"], err)
	}
	if slog.Default() != logger {
		t.Fatalf("expected logger to become the default")
	}
}

func TestNewDevWritesText(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := New(&buf, &config.AppConfig{AppEnv: "dev", LogLevel: slog.LevelWarn}, "dev", "weatherservice")
	logger.Info("skipped")
	logger.Warn("feed slow", "duration_ms", 1200)

	out := buf.String()
	if strings.Contains(out, "skipped") || !strings.Contains(out, "feed slow") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestComponentNilLogger(t *testing.T) {
	if Component(nil, "http") == nil {
		t.Fatalf("expected a logger")
	}
}
