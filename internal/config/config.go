// Package config loads the layered fsindex configuration: built-in
// defaults, then the user config file, then the project config file, then
// environment variable overrides. Later layers win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-project configuration file, looked up in
// the workspace root.
const ProjectConfigName = ".fsindex.yaml"

// Config is the complete fsindex configuration.
type Config struct {
	// Index configures what gets indexed and how much of it is kept.
	Index IndexConfig `yaml:"index"`

	// Watch configures the filesystem event pipeline.
	Watch WatchConfig `yaml:"watch"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// IndexConfig configures rule layering and working-set bounds.
type IndexConfig struct {
	// CorePatterns are gitignore-syntax patterns for permanently
	// retained paths, exempt from eviction and ignore rules.
	CorePatterns []string `yaml:"core_patterns"`

	// IgnorePatterns are static gitignore-syntax exclusions.
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// UseIgnoreFiles enables composing rules from per-directory ignore
	// files found under the root.
	UseIgnoreFiles bool `yaml:"use_ignore_files"`

	// IgnoreFileName is the per-directory ignore file name.
	IgnoreFileName string `yaml:"ignore_file_name"`

	// DynamicLimit bounds the number of non-core indexed paths.
	DynamicLimit int `yaml:"dynamic_limit"`
}

// WatchConfig configures the watcher-to-consumer event queue.
type WatchConfig struct {
	// QueueSize is the event queue capacity. Overflow is dropped and
	// repaired later by fallback scans.
	QueueSize int `yaml:"queue_size"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `yaml:"level"`

	// File is the log file path. Empty logs to stderr only.
	File string `yaml:"file"`

	// Stderr mirrors file logging to stderr as well.
	Stderr bool `yaml:"stderr"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Index: IndexConfig{
			IgnorePatterns: []string{".git/"},
			UseIgnoreFiles: true,
			IgnoreFileName: ".gitignore",
			DynamicLimit:   10000,
		},
		Watch: WatchConfig{
			QueueSize: 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// UserConfigPath returns the per-user config file path
// (~/.config/fsindex/config.yaml).
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fsindex", "config.yaml")
}

// Load builds the effective configuration for a workspace rooted at dir.
// Missing config files are not errors; malformed ones are.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if p := UserConfigPath(); p != "" {
		if err := cfg.loadYAML(p); err != nil {
			return nil, fmt.Errorf("user config: %w", err)
		}
	}
	if err := cfg.loadYAML(filepath.Join(dir, ProjectConfigName)); err != nil {
		return nil, fmt.Errorf("project config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges one config file into c. A missing file is a no-op.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies FSINDEX_* environment variables, the highest
// priority layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FSINDEX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FSINDEX_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("FSINDEX_DYNAMIC_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.DynamicLimit = n
		}
	}
	if v := os.Getenv("FSINDEX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Watch.QueueSize = n
		}
	}
}

// Validate checks for values that cannot be worked around.
func (c *Config) Validate() error {
	if c.Index.DynamicLimit <= 0 {
		return fmt.Errorf("index.dynamic_limit must be positive, got %d", c.Index.DynamicLimit)
	}
	if c.Watch.QueueSize <= 0 {
		return fmt.Errorf("watch.queue_size must be positive, got %d", c.Watch.QueueSize)
	}
	if c.Index.UseIgnoreFiles && c.Index.IgnoreFileName == "" {
		return fmt.Errorf("index.ignore_file_name must be set when use_ignore_files is enabled")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// WriteYAML writes the configuration to path, creating parent directories
// as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
