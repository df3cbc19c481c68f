package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, _, exists, err := Load(missing)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Helper.Broker != "pkexec" {
		t.Fatalf("broker default = %q", cfg.Helper.Broker)
	}
	if cfg.Imaging.ProgressIntervalMS != 100 {
		t.Fatalf("progress interval default = %d", cfg.Imaging.ProgressIntervalMS)
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
download_dir = "~/images"

[helper]
broker = "sudo"

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, used, exists, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists || used != path {
		t.Fatalf("exists=%v used=%q", exists, used)
	}
	if strings.HasPrefix(cfg.Paths.DownloadDir, "~") {
		t.Fatalf("download_dir not expanded: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Helper.Broker != "sudo" {
		t.Fatalf("broker = %q", cfg.Helper.Broker)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad catalog scheme", func(c *Config) { c.Catalog.URL = "ftp://example.com/catalog.json" }},
		{"tiny progress interval", func(c *Config) { c.Imaging.ProgressIntervalMS = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatal(err)
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatal(err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DownloadDir = filepath.Join(dir, "dl")
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{cfg.Paths.DownloadDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Fatalf("missing directory %s (err=%v)", p, err)
		}
	}
}
