package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the queue directory layout and state file location.
type Paths struct {
	QueueDir     string `toml:"queue_dir"`
	StagingDir   string `toml:"staging_dir"`
	DraftsDir    string `toml:"drafts_dir"`
	CompletedDir string `toml:"completed_dir"`
	FailedDir    string `toml:"failed_dir"`
	LogDir       string `toml:"log_dir"`
	StateFile    string `toml:"state_file"`
}

// API contains credentials and timing for the batch submission backend.
type API struct {
	Key               string `toml:"key"`
	PollInterval      int    `toml:"poll_interval"`
	BatchTimeoutHours int    `toml:"batch_timeout_hours"`
}

// RateLimit contains the submission throttling thresholds.
type RateLimit struct {
	MaxPerHour         int `toml:"max_per_hour"`
	MinIntervalMinutes int `toml:"min_interval_minutes"`
}

// Workflow contains daemon timing and queue scanning settings.
type Workflow struct {
	QueuePollInterval int    `toml:"queue_poll_interval"`
	DefinitionExt     string `toml:"definition_ext"`
}

// Tools names the external collaborator commands the pipeline invokes.
type Tools struct {
	Collector string `toml:"collector"`
	Builder   string `toml:"builder"`
	Submitter string `toml:"submitter"`
	Timeout   int    `toml:"timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Queue          bool   `toml:"queue"`
	Items          bool   `toml:"items"`
	Errors         bool   `toml:"errors"`
	Deferrals      bool   `toml:"deferrals"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	RetentionDays      int               `toml:"retention_days"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Config encapsulates all configuration values for Hopper.
//
// Configuration sections by subsystem:
//   - Paths: queue directory layout and persistent state file
//   - API: batch backend credentials and polling cadence
//   - RateLimit: hourly cap and minimum spacing between submissions
//   - Workflow: daemon polling interval and definition extension
//   - Tools: external collaborator command names and timeout
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	Workflow      Workflow      `toml:"workflow"`
	Tools         Tools         `toml:"tools"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hopper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/hopper/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hopper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the queue directory tree plus the log and state
// locations required for operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.QueueDir,
		c.Paths.StagingDir,
		c.Paths.DraftsDir,
		c.Paths.CompletedDir,
		c.Paths.FailedDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if stateDir := filepath.Dir(c.Paths.StateFile); stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return fmt.Errorf("create state directory %q: %w", stateDir, err)
		}
	}
	return nil
}

// MinInterval returns the minimum spacing between submissions as a duration.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.RateLimit.MinIntervalMinutes) * time.Minute
}

// QueuePollInterval returns the daemon queue scan interval as a duration.
func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

// ToolTimeout returns the collaborator execution timeout as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.Timeout) * time.Second
}

// BatchTimeout returns the submission wait ceiling as a duration.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.API.BatchTimeoutHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
