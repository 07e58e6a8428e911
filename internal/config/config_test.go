package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseLaunchSuccess(t *testing.T) {
	l, err := ParseLaunch([]string{"9000", "100", "100", "5", "5", "red", "blue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Port != 9000 || l.BoardW != 100 || l.BoardH != 100 || l.NoteW != 5 || l.NoteH != 5 {
		t.Errorf("got %+v", l)
	}
	if len(l.Colors) != 2 {
		t.Errorf("got %d colors", len(l.Colors))
	}
}

func TestParseLaunchTooFewArgs(t *testing.T) {
	if _, err := ParseLaunch([]string{"9000", "100", "100", "5", "5"}); err == nil {
		t.Fatal("expected error for missing colors")
	}
}

func TestParseLaunchNonNumeric(t *testing.T) {
	if _, err := ParseLaunch([]string{"abc", "100", "100", "5", "5", "red"}); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestParseLaunchNonPositive(t *testing.T) {
	if _, err := ParseLaunch([]string{"9000", "0", "100", "5", "5", "red"}); err == nil {
		t.Fatal("expected error for zero boardW")
	}
}

func TestParseLaunchNoteLargerThanBoard(t *testing.T) {
	if _, err := ParseLaunch([]string{"9000", "10", "10", "20", "5", "red"}); err == nil {
		t.Fatal("expected error for note wider than board")
	}
}

func TestParseLaunchDuplicateColor(t *testing.T) {
	if _, err := ParseLaunch([]string{"9000", "10", "10", "2", "2", "red", "RED"}); err == nil {
		t.Fatal("expected error for duplicate color (case-insensitive)")
	}
}

func TestParseLaunchBlankColor(t *testing.T) {
	if _, err := ParseLaunch([]string{"9000", "10", "10", "2", "2", "  "}); err == nil {
		t.Fatal("expected error for blank color")
	}
}

func TestAmbientDefaultsOnEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Defaults()
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestAmbientDefaultsOnMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Defaults()) {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestAmbientLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corkboard.yaml")
	content := "log_level: debug\nlog_format: console\nmetrics_addr: 0.0.0.0:9999\nmetrics_enabled: false\nworker_pool_size: 4\nshutdown_drain_timeout: 10s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Ambient{
		LogLevel:             "debug",
		LogFormat:            "console",
		MetricsAddr:          "0.0.0.0:9999",
		MetricsEnabled:       false,
		WorkerPoolSize:       4,
		ShutdownDrainTimeout: 10 * time.Second,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestAmbientLoadValidatorsList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corkboard.yaml")
	content := "validators:\n  - profanity\n  - length_cap\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"profanity", "length_cap"}
	if !reflect.DeepEqual(cfg.Validators, want) {
		t.Errorf("got %v, want %v", cfg.Validators, want)
	}
}

func TestAmbientLoadInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corkboard.yaml")
	if err := os.WriteFile(path, []byte("log_level: verbose\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for invalid log_level")
	}
}

func TestAmbientLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corkboard.yaml")
	if err := os.WriteFile(path, []byte("log_level: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestAmbientLoadNonPositiveWorkerPoolSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corkboard.yaml")
	if err := os.WriteFile(path, []byte("worker_pool_size: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for worker_pool_size < 1")
	}
}
