package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/3cpo-dev/xbuild/internal/publish"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LocalConfigName is looked up in the working directory before the XDG config.
const LocalConfigName = "xbuild.yaml"

type Config struct {
	Program   string         `yaml:"program"`
	Package   string         `yaml:"package"`
	Version   string         `yaml:"version"`
	OutputDir string         `yaml:"output_dir"`
	Build     BuildConfig    `yaml:"build"`
	Compress  CompressConfig `yaml:"compress"`
	Publish   PublishConfig  `yaml:"publish"`
	History   HistoryConfig  `yaml:"history"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

type BuildConfig struct {
	SymbolPackage string        `yaml:"symbol_package"`
	Strip         *bool         `yaml:"strip"`
	CGO           bool          `yaml:"cgo"`
	Trimpath      bool          `yaml:"trimpath"`
	Tags          []string      `yaml:"tags"`
	Timeout       time.Duration `yaml:"timeout"`
}

// StripSymbols reports whether -s -w are passed to the linker (default true).
func (b BuildConfig) StripSymbols() bool { return b.Strip == nil || *b.Strip }

type CompressConfig struct {
	Method    string   `yaml:"method"`
	Level     int      `yaml:"level"`
	Platforms []string `yaml:"platforms"`
}

type PublishConfig struct {
	Attempts int                 `yaml:"attempts"`
	SFTP     *publish.SFTPConfig `yaml:"sftp"`
	S3       *publish.S3Config   `yaml:"s3"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ValidationError reports one invalid configuration value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s=%s: %s", e.Field, e.Value, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrConfiguration }

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads YAML configuration from path. If path is empty it tries
// ./xbuild.yaml and then $XDG_CONFIG_HOME/xbuild/config.yaml, falling back
// to defaults when neither exists. An explicit path must exist.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = findConfig()
	}

	cfg := Config{}
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return cfg, newError(ErrConfiguration, err, "parse config %s", path)
			}
			cfg.Path = path
			log.Debug().Str("path", path).Msg("Loaded config")
		case explicit || !errors.Is(err, os.ErrNotExist):
			return cfg, newError(ErrConfiguration, err, "read config")
		}
	}

	// Merge secrets from secrets.env to avoid storing credentials in YAML
	secretsPath := filepath.Join(xdg.ConfigHome, "xbuild", "secrets.env")
	if cfg.Path != "" {
		secretsPath = filepath.Join(filepath.Dir(cfg.Path), "secrets.env")
	}
	file, err := LoadSecretsEnv(secretsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", secretsPath).Msg("Ignoring unreadable secrets file")
	}
	secrets := mergeSecrets(file)
	if cfg.Publish.S3 != nil {
		cfg.Publish.S3.AccessKeyID = secrets["AWS_ACCESS_KEY_ID"]
		cfg.Publish.S3.SecretAccessKey = secrets["AWS_SECRET_ACCESS_KEY"]
		cfg.Publish.S3.SessionToken = secrets["AWS_SESSION_TOKEN"]
	}

	cfg.applyDefaults()
	return cfg, nil
}

func findConfig() string {
	if _, err := os.Stat(LocalConfigName); err == nil {
		return LocalConfigName
	}
	p := filepath.Join(xdg.ConfigHome, "xbuild", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// DefaultHistoryPath is $XDG_DATA_HOME/xbuild/history.db.
func DefaultHistoryPath() string {
	return filepath.Join(xdg.DataHome, "xbuild", "history.db")
}

// SetCompression switches the compression method. A level configured for
// a different method does not carry over; the new method's default applies.
func (c *Config) SetCompression(method string) {
	if method != c.Compress.Method {
		c.Compress.Level = 0
	}
	c.Compress.Method = method
	c.defaultCompressLevel()
}

func (c *Config) defaultCompressLevel() {
	if c.Compress.Level == 0 && c.Compress.Method == CompressUPX {
		c.Compress.Level = 9
	}
}

func (c *Config) applyDefaults() {
	if c.Program == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Program = filepath.Base(wd)
		}
	}
	if c.Package == "" {
		c.Package = "."
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Build.SymbolPackage == "" {
		c.Build.SymbolPackage = "main"
	}
	if c.Compress.Method == "" {
		c.Compress.Method = CompressUPX
	}
	c.defaultCompressLevel()
	if len(c.Compress.Platforms) == 0 {
		c.Compress.Platforms = append([]string(nil), DefaultCompressPlatforms...)
	}
	if c.Publish.Attempts == 0 {
		c.Publish.Attempts = publish.DefaultRetryConfig().Attempts
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath()
	}
}

// Validate checks values that defaults cannot repair.
func (c Config) Validate() error {
	if c.Program == "" {
		return ValidationError{Field: "program", Value: "", Message: "program name is required"}
	}
	if CheckLinkerValue("version", c.Version) != nil {
		return ValidationError{Field: "version", Value: c.Version, Message: "cannot contain both single and double quotes"}
	}
	switch c.Compress.Method {
	case CompressNone, CompressUPX, CompressZstd:
	default:
		return ValidationError{Field: "compress.method", Value: c.Compress.Method, Message: "must be one of upx, zstd, none"}
	}
	if c.Compress.Method == CompressUPX && (c.Compress.Level < 1 || c.Compress.Level > 9) {
		return ValidationError{Field: "compress.level", Value: fmt.Sprint(c.Compress.Level), Message: "upx level must be between 1 and 9"}
	}
	if c.Compress.Method == CompressZstd && (c.Compress.Level < 0 || c.Compress.Level > 22) {
		return ValidationError{Field: "compress.level", Value: fmt.Sprint(c.Compress.Level), Message: "zstd level must be between 1 and 22"}
	}
	if c.Build.Timeout < 0 {
		return ValidationError{Field: "build.timeout", Value: c.Build.Timeout.String(), Message: "timeout cannot be negative"}
	}
	if c.Publish.Attempts < 1 {
		return ValidationError{Field: "publish.attempts", Value: fmt.Sprint(c.Publish.Attempts), Message: "at least one attempt is required"}
	}
	if s := c.Publish.SFTP; s != nil {
		if s.Host == "" {
			return ValidationError{Field: "publish.sftp.host", Value: "", Message: "host is required"}
		}
		if s.User == "" {
			return ValidationError{Field: "publish.sftp.user", Value: "", Message: "user is required"}
		}
		if s.KeyPath == "" {
			return ValidationError{Field: "publish.sftp.key_path", Value: "", Message: "key path is required"}
		}
		if s.KnownHosts == "" {
			return ValidationError{Field: "publish.sftp.known_hosts", Value: "", Message: "known_hosts path is required"}
		}
	}
	if s := c.Publish.S3; s != nil && s.Bucket == "" {
		return ValidationError{Field: "publish.s3.bucket", Value: "", Message: "bucket is required"}
	}
	return nil
}
