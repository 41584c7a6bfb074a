package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/3cpo-dev/xbuild/internal/publish"
	"github.com/adrg/xdg"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func isolateXDG(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, k := range SecretKeys {
		t.Setenv(k, "")
	}
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return dir
}

func TestLoadConfigFile(t *testing.T) {
	isolateXDG(t)
	path := filepath.Join(t.TempDir(), "xbuild.yaml")
	writeFile(t, path, `
program: transfer
package: ./cmd/transfer
version: 0.1.2
output_dir: dist
build:
  strip: false
  trimpath: true
  tags: [netgo]
  timeout: 90s
compress:
  method: zstd
  level: 19
  platforms: [windows]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Program != "transfer" || cfg.Package != "./cmd/transfer" || cfg.Version != "0.1.2" || cfg.OutputDir != "dist" {
		t.Errorf("unexpected top level: %+v", cfg)
	}
	if cfg.Build.StripSymbols() || !cfg.Build.Trimpath || cfg.Build.Timeout != 90*time.Second {
		t.Errorf("unexpected build section: %+v", cfg.Build)
	}
	if !reflect.DeepEqual(cfg.Build.Tags, []string{"netgo"}) || cfg.Build.SymbolPackage != "main" {
		t.Errorf("unexpected build section: %+v", cfg.Build)
	}
	if cfg.Compress.Method != CompressZstd || cfg.Compress.Level != 19 || !reflect.DeepEqual(cfg.Compress.Platforms, []string{"windows"}) {
		t.Errorf("unexpected compress section: %+v", cfg.Compress)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := isolateXDG(t)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("unexpected config file %q", cfg.Path)
	}
	if cfg.Version != "dev" || cfg.Package != "." || cfg.OutputDir != "." || !cfg.Build.StripSymbols() {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Compress.Method != CompressUPX || cfg.Compress.Level != 9 {
		t.Errorf("compression defaults: %+v", cfg.Compress)
	}
	if !reflect.DeepEqual(cfg.Compress.Platforms, []string{"windows", "darwin"}) {
		t.Errorf("compress platforms: %v", cfg.Compress.Platforms)
	}
	if cfg.Publish.Attempts != 3 {
		t.Errorf("publish attempts: %d", cfg.Publish.Attempts)
	}
	if want := filepath.Join(dir, "data", "xbuild", "history.db"); cfg.History.Path != want {
		t.Errorf("history path %q, want %q", cfg.History.Path, want)
	}
	if cfg.Program == "" {
		t.Errorf("program not defaulted from the working directory")
	}
}

func TestLoadConfigXDGFallback(t *testing.T) {
	dir := isolateXDG(t)
	path := filepath.Join(dir, "config", "xbuild", "config.yaml")
	writeFile(t, path, "program: fromxdg\n")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Program != "fromxdg" || cfg.Path != path {
		t.Fatalf("got program %q from %q", cfg.Program, cfg.Path)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	isolateXDG(t)
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing explicit file: %v", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, "program: [unterminated\n")
	if _, err := LoadConfig(bad); !errors.Is(err, ErrConfiguration) {
		t.Errorf("bad yaml: %v", err)
	}
}

func TestLoadConfigMergesSecrets(t *testing.T) {
	isolateXDG(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "publish:\n  s3:\n    bucket: releases\n")
	writeFile(t, filepath.Join(dir, "secrets.env"), `
# credentials
AWS_ACCESS_KEY_ID=AKIAFILE
export AWS_SECRET_ACCESS_KEY="filesecret"
`)
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAENV")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s3 := cfg.Publish.S3
	if s3.AccessKeyID != "AKIAENV" || s3.SecretAccessKey != "filesecret" || s3.SessionToken != "" {
		t.Fatalf("unexpected credentials: %+v", s3)
	}
}

func TestLoadSecretsEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.env")
	writeFile(t, path, "A=1\n# B=2\n\nC = 'three'\nnoequals\n")
	got, err := LoadSecretsEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := map[string]string{"A": "1", "C": "three"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	missing, err := LoadSecretsEnv(filepath.Join(t.TempDir(), "none.env"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("missing file: %v %v", missing, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *Config)
		field string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown method", func(c *Config) { c.Compress.Method = "lzma" }, "compress.method"},
		{"upx level", func(c *Config) { c.Compress.Level = 12 }, "compress.level"},
		{"negative timeout", func(c *Config) { c.Build.Timeout = -time.Second }, "build.timeout"},
		{"no program", func(c *Config) { c.Program = "" }, "program"},
		{"version with both quotes", func(c *Config) { c.Version = `1.0 "rc" it's` }, "version"},
		{"version with one quote kind", func(c *Config) { c.Version = "1.0 it's" }, ""},
		{"sftp without host", func(c *Config) { c.Publish.SFTP = &publish.SFTPConfig{User: "u"} }, "publish.sftp.host"},
		{"sftp without key", func(c *Config) {
			c.Publish.SFTP = &publish.SFTPConfig{Host: "h", User: "u", KnownHosts: "kh"}
		}, "publish.sftp.key_path"},
		{"s3 without bucket", func(c *Config) { c.Publish.S3 = &publish.S3Config{} }, "publish.s3.bucket"},
		{"zero attempts", func(c *Config) { c.Publish.Attempts = -1 }, "publish.attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Program = "prog"
			tt.edit(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("validation error does not match ErrConfiguration")
			}
		})
	}
}

func TestSetCompression(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		level     int
		to        string
		wantLevel int
	}{
		{"none to upx", CompressNone, 0, CompressUPX, 9},
		{"zstd level dropped for upx", CompressZstd, 19, CompressUPX, 9},
		{"upx to zstd uses encoder default", CompressUPX, 9, CompressZstd, 0},
		{"same method keeps level", CompressUPX, 4, CompressUPX, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Program = "prog"
			cfg.Compress.Method, cfg.Compress.Level = tt.method, tt.level
			cfg.SetCompression(tt.to)
			if cfg.Compress.Method != tt.to || cfg.Compress.Level != tt.wantLevel {
				t.Fatalf("got %s level %d, want %s level %d", cfg.Compress.Method, cfg.Compress.Level, tt.to, tt.wantLevel)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}
