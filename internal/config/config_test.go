package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/watchdog/internal/config"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.yml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "https://example.com/health"
    interval: "30s"
    timeout: "5s"
  - name: "site"
    url: "http://example.org"
defaults:
  interval: "45s"
  timeout: "3s"
scheduler:
  tick: "2s"
status:
  window: 50
alerts:
  webhook:
    url: "https://hooks.example.com/alert"
    cooldown: "5m"
server:
  address: ":9090"
storage:
  path: "test.db"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Targets))
	}
	if cfg.Targets[0].Name != "api" {
		t.Errorf("expected target name 'api', got %q", cfg.Targets[0].Name)
	}
	if cfg.Targets[0].Interval.Duration != 30*time.Second {
		t.Errorf("expected interval 30s, got %v", cfg.Targets[0].Interval)
	}
	if cfg.Targets[1].Interval.Duration != 45*time.Second {
		t.Errorf("expected defaulted interval 45s, got %v", cfg.Targets[1].Interval)
	}
	if cfg.Targets[1].Timeout.Duration != 3*time.Second {
		t.Errorf("expected defaulted timeout 3s, got %v", cfg.Targets[1].Timeout)
	}
	if cfg.Scheduler.Tick.Duration != 2*time.Second {
		t.Errorf("expected tick 2s, got %v", cfg.Scheduler.Tick)
	}
	if cfg.Status.Window != 50 {
		t.Errorf("expected window 50, got %d", cfg.Status.Window)
	}
	if cfg.Alerts.Webhook.URL != "https://hooks.example.com/alert" {
		t.Errorf("unexpected webhook url: %q", cfg.Alerts.Webhook.URL)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("unexpected address: %q", cfg.Server.Address)
	}
	if cfg.Storage.Path != "test.db" {
		t.Errorf("unexpected storage path: %q", cfg.Storage.Path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "https://example.com/health"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tgt := cfg.Targets[0]
	if tgt.Interval.Duration != 60*time.Second {
		t.Errorf("expected default interval 60s, got %v", tgt.Interval)
	}
	if tgt.Timeout.Duration != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", tgt.Timeout)
	}
	if cfg.Scheduler.Tick.Duration != time.Second {
		t.Errorf("expected default tick 1s, got %v", cfg.Scheduler.Tick)
	}
	if cfg.Status.Window != 20 {
		t.Errorf("expected default window 20, got %d", cfg.Status.Window)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %q", cfg.Server.Address)
	}
	if cfg.Storage.Path != "watchdog.db" {
		t.Errorf("expected default storage path watchdog.db, got %q", cfg.Storage.Path)
	}
}

func TestLoad_MissingName(t *testing.T) {
	path := writeTemp(t, `
targets:
  - url: "https://example.com"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for missing name, got nil")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error should mention 'name': %v", err)
	}
}

func TestLoad_MissingURL(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for missing url, got nil")
	}
	if !strings.Contains(err.Error(), "url") {
		t.Errorf("error should mention 'url': %v", err)
	}
}

func TestLoad_InvalidScheme(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "ftp://example.com"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for non-http scheme, got nil")
	}
	if !strings.Contains(err.Error(), "scheme") {
		t.Errorf("error should mention 'scheme': %v", err)
	}
}

func TestLoad_InvalidInterval(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "https://example.com"
    interval: "not-a-duration"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid interval, got nil")
	}
	if !strings.Contains(err.Error(), "interval") {
		t.Errorf("error should mention 'interval': %v", err)
	}
}

func TestLoad_NegativeInterval(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "https://example.com"
    interval: "-5s"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for negative interval, got nil")
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "https://example.com"
    timeout: "bad"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid timeout, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error should mention 'timeout': %v", err)
	}
}

func TestLoad_EmptyTargets(t *testing.T) {
	path := writeTemp(t, `
targets: []
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for empty targets, got nil")
	}
	if !strings.Contains(err.Error(), "target") {
		t.Errorf("error should mention 'target': %v", err)
	}
}

func TestLoad_DuplicateTargetNames(t *testing.T) {
	path := writeTemp(t, `
targets:
  - name: "api"
    url: "https://example.com"
  - name: "api"
    url: "https://example.org"
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for duplicate names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention 'duplicate': %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeTemp(t, `
targets: [
`)
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for malformed yaml, got nil")
	}
}
