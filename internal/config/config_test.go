package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SQWATCH_") {
			name, _, _ := strings.Cut(kv, "=")
			t.Setenv(name, "")
		}
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval || cfg.HistoryCap != DefaultHistoryCap || cfg.HistoryWindow != DefaultHistoryWindow {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShowScheduled || cfg.ShowHistorical {
		t.Fatalf("sections should start collapsed: %+v", cfg)
	}
	if cfg.LogFile != filepath.Join(home, ".cache", "sqwatch", "sqwatch.log") {
		t.Fatalf("LogFile = %q", cfg.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	globalDir := filepath.Join(home, ".config", "sqwatch")
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatalf("mkdir global: %v", err)
	}
	global := "user: alice\npartition: gpu\nhistory_cap: 5\npoll_interval: 5s\n"
	if err := os.WriteFile(filepath.Join(globalDir, "config.yaml"), []byte(global), 0644); err != nil {
		t.Fatalf("write global config: %v", err)
	}

	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, ".sqwatch"), 0755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	local := "partition: cpu\nshow_scheduled: true\nhistory_cap: 0\nsource: file:jobs.yaml\nhistory_window: 2d\n"
	if err := os.WriteFile(filepath.Join(repo, ".sqwatch", "config.yaml"), []byte(local), 0644); err != nil {
		t.Fatalf("write repo config: %v", err)
	}
	chdir(t, repo)

	t.Setenv("SQWATCH_USER", "bob")
	t.Setenv("SQWATCH_PARTITION", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.User != "bob" {
		t.Fatalf("env should override global: User = %q", cfg.User)
	}
	if cfg.Partition != "cpu" {
		t.Fatalf("repo config should override env: Partition = %q", cfg.Partition)
	}
	if cfg.HistoryCap != 0 || !cfg.ShowScheduled || cfg.PollInterval != 5*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HistoryWindow != 48*time.Hour {
		t.Fatalf("HistoryWindow = %s", cfg.HistoryWindow)
	}
	if !strings.HasPrefix(cfg.Source, "file:") || !strings.HasSuffix(cfg.Source, filepath.Join(filepath.Base(repo), "jobs.yaml")) {
		t.Fatalf("Source = %q", cfg.Source)
	}

	explicit := filepath.Join(t.TempDir(), "override.yaml")
	if err := os.WriteFile(explicit, []byte("partition: long\n"), 0644); err != nil {
		t.Fatalf("write explicit config: %v", err)
	}
	cfg, err = Load(explicit)
	if err != nil {
		t.Fatalf("Load explicit error: %v", err)
	}
	if cfg.Partition != "long" {
		t.Fatalf("explicit config should win: Partition = %q", cfg.Partition)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	chdir(t, t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("SQWATCH_POLL_INTERVAL", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for bad SQWATCH_POLL_INTERVAL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"fast poll", func(c *Config) { c.PollInterval = 50 * time.Millisecond }, false},
		{"negative cap", func(c *Config) { c.HistoryCap = -1 }, false},
		{"negative window", func(c *Config) { c.HistoryWindow = -time.Hour }, false},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, false},
		{"zero window", func(c *Config) { c.HistoryWindow = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/test")

	if got := ExpandPath("~/jobs.yaml", ""); got != filepath.Join("/home/test", "jobs.yaml") {
		t.Fatalf("ExpandPath home = %q", got)
	}
	if got := ExpandPath("relative/path", "/base"); got != filepath.Join("/base", "relative/path") {
		t.Fatalf("ExpandPath relative = %q", got)
	}
}

func TestParseWindow(t *testing.T) {
	tests := map[string]time.Duration{
		"0":   0,
		"90m": 90 * time.Minute,
		"1d":  24 * time.Hour,
	}
	for raw, want := range tests {
		got, err := parseWindow(raw)
		if err != nil || got != want {
			t.Fatalf("parseWindow(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := parseWindow("xd"); err == nil {
		t.Fatal("expected error")
	}
}
