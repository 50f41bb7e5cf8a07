package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sevenstream/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "sevenstream", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "sevenstream") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.SevenZip.LockDir != filepath.Join(tempHome, ".local", "share", "sevenstream", "locks") {
		t.Fatalf("unexpected lock dir: %q", cfg.SevenZip.LockDir)
	}
	if cfg.SevenZip.Binary != "7z" {
		t.Fatalf("unexpected binary: %q", cfg.SevenZip.Binary)
	}
	if cfg.History.Compression != "zstd" || !cfg.History.Enabled {
		t.Fatalf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.RunTimeout() != 0 {
		t.Fatalf("expected unbounded runs by default, got %s", cfg.RunTimeout())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
	if cfg.HistoryPath() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
}

func TestLoadCustomFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[sevenzip]
binary = "/opt/7zz"
output_encoding = "CP850"
run_timeout = 90

[paths]
state_dir = "~/state"

[history]
compression = "LZ4"
retention_days = 7

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.SevenZip.Binary != "/opt/7zz" {
		t.Fatalf("unexpected binary: %q", cfg.SevenZip.Binary)
	}
	if cfg.SevenZip.OutputEncoding != "cp850" {
		t.Fatalf("expected lower-cased encoding, got %q", cfg.SevenZip.OutputEncoding)
	}
	if cfg.RunTimeout() != 90*time.Second {
		t.Fatalf("unexpected run timeout: %s", cfg.RunTimeout())
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.History.Compression != "lz4" || cfg.History.RetentionDays != 7 {
		t.Fatalf("unexpected history: %+v", cfg.History)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile("sevenstream.toml", []byte("[sevenzip]\nbinary = \"7za\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || filepath.Base(resolved) != "sevenstream.toml" {
		t.Fatalf("expected project config, got %q (exists=%v)", resolved, exists)
	}
	if cfg.SevenZip.Binary != "7za" {
		t.Fatalf("unexpected binary: %q", cfg.SevenZip.Binary)
	}
}

func TestBinaryEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SEVENSTREAM_BINARY", "/usr/local/bin/7zz")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SevenZip.Binary != "/usr/local/bin/7zz" {
		t.Fatalf("expected env binary, got %q", cfg.SevenZip.Binary)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[sevenzip]\nbinray = \"7z\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "binray") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"bad compression", func(c *config.Config) { c.History.Compression = "gzip" }, "history.compression"},
		{"negative retention", func(c *config.Config) { c.History.RetentionDays = -1 }, "history.retention_days"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad file level", func(c *config.Config) { c.Logging.FileLevel = "verbose" }, "logging.file_level"},
		{"negative timeout", func(c *config.Config) { c.SevenZip.RunTimeout = -5 }, "sevenzip.run_timeout"},
		{"unknown encoding", func(c *config.Config) { c.SevenZip.OutputEncoding = "klingon" }, "sevenzip.output_encoding"},
		{"oem encoding", func(c *config.Config) { c.SevenZip.OutputEncoding = "cp866" }, ""},
		{"whatwg encoding", func(c *config.Config) { c.SevenZip.OutputEncoding = "windows-1251" }, ""},
		{"zero bucket", func(c *config.Config) { c.Progress.BucketSize = 0 }, "progress.bucket_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLockPath(t *testing.T) {
	cfg := config.Default()
	cfg.SevenZip.LockDir = "/locks"
	if got := cfg.LockPath("/data/backups/out.7z"); got != filepath.Join("/locks", "out.7z.lock") {
		t.Fatalf("unexpected lock path: %q", got)
	}
	if got := cfg.LockPath("backup:2024?.7z"); got != filepath.Join("/locks", "backup-2024.7z.lock") {
		t.Fatalf("unexpected sanitized lock path: %q", got)
	}
	if got := cfg.LockPath(""); got != filepath.Join("/locks", "sevenstream.lock") {
		t.Fatalf("unexpected fallback lock path: %q", got)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.SevenZip.Binary != "7z" {
		t.Fatalf("unexpected sample binary: %q", decoded.SevenZip.Binary)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestMarshalIncludesSections(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	for _, section := range []string{"[sevenzip]", "[paths]", "[history]", "[logging]", "[progress]"} {
		if !strings.Contains(string(data), section) {
			t.Fatalf("expected %s in output:\n%s", section, data)
		}
	}
}
