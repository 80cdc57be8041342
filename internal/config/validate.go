package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.queue_dir":     c.Paths.QueueDir,
		"paths.staging_dir":   c.Paths.StagingDir,
		"paths.drafts_dir":    c.Paths.DraftsDir,
		"paths.completed_dir": c.Paths.CompletedDir,
		"paths.failed_dir":    c.Paths.FailedDir,
		"paths.log_dir":       c.Paths.LogDir,
		"paths.state_file":    c.Paths.StateFile,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	seen := make(map[string]string, 5)
	for key, dir := range map[string]string{
		"paths.queue_dir":     c.Paths.QueueDir,
		"paths.staging_dir":   c.Paths.StagingDir,
		"paths.drafts_dir":    c.Paths.DraftsDir,
		"paths.completed_dir": c.Paths.CompletedDir,
		"paths.failed_dir":    c.Paths.FailedDir,
	} {
		if other, ok := seen[dir]; ok {
			return fmt.Errorf("%s and %s must not share the directory %q", key, other, dir)
		}
		seen[dir] = key
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Key == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/hopper/config.toml"
		}
		return fmt.Errorf("api.key is required. Set ANTHROPIC_API_KEY env var or edit %s (create with 'hopper config init')", defaultPath)
	}
	return ensurePositiveMap(map[string]int{
		"api.poll_interval":       c.API.PollInterval,
		"api.batch_timeout_hours": c.API.BatchTimeoutHours,
	})
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.MaxPerHour <= 0 {
		return errors.New("rate_limit.max_per_hour must be positive")
	}
	if c.RateLimit.MinIntervalMinutes < 0 {
		return errors.New("rate_limit.min_interval_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if !strings.HasPrefix(c.Workflow.DefinitionExt, ".") || len(c.Workflow.DefinitionExt) < 2 {
		return fmt.Errorf("workflow.definition_ext must be a file extension, got %q", c.Workflow.DefinitionExt)
	}
	return nil
}

func (c *Config) validateTools() error {
	required := map[string]string{
		"tools.collector": c.Tools.Collector,
		"tools.builder":   c.Tools.Builder,
		"tools.submitter": c.Tools.Submitter,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return ensurePositiveMap(map[string]int{
		"tools.timeout": c.Tools.Timeout,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
