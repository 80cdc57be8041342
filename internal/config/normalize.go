package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeWorkflow()
	c.normalizeTools()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.QueueDir, err = expandPath(c.Paths.QueueDir); err != nil {
		return fmt.Errorf("paths.queue_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.DraftsDir, err = expandPath(c.Paths.DraftsDir); err != nil {
		return fmt.Errorf("paths.drafts_dir: %w", err)
	}
	if c.Paths.CompletedDir, err = expandPath(c.Paths.CompletedDir); err != nil {
		return fmt.Errorf("paths.completed_dir: %w", err)
	}
	if c.Paths.FailedDir, err = expandPath(c.Paths.FailedDir); err != nil {
		return fmt.Errorf("paths.failed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateFile) == "" {
		c.Paths.StateFile = defaultStateFile
	}
	if c.Paths.StateFile, err = expandPath(c.Paths.StateFile); err != nil {
		return fmt.Errorf("paths.state_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Key = strings.TrimSpace(c.API.Key)
	if c.API.Key == "" {
		if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			c.API.Key = strings.TrimSpace(value)
		}
	}
	if c.API.PollInterval <= 0 {
		c.API.PollInterval = defaultAPIPollInterval
	}
	if c.API.BatchTimeoutHours <= 0 {
		c.API.BatchTimeoutHours = defaultBatchTimeoutHours
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollSeconds
	}
	c.Workflow.DefinitionExt = strings.ToLower(strings.TrimSpace(c.Workflow.DefinitionExt))
	if c.Workflow.DefinitionExt == "" {
		c.Workflow.DefinitionExt = defaultDefinitionExt
	}
	if !strings.HasPrefix(c.Workflow.DefinitionExt, ".") {
		c.Workflow.DefinitionExt = "." + c.Workflow.DefinitionExt
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Collector = strings.TrimSpace(c.Tools.Collector)
	if c.Tools.Collector == "" {
		c.Tools.Collector = defaultCollectorCommand
	}
	c.Tools.Builder = strings.TrimSpace(c.Tools.Builder)
	if c.Tools.Builder == "" {
		c.Tools.Builder = defaultBuilderCommand
	}
	c.Tools.Submitter = strings.TrimSpace(c.Tools.Submitter)
	if c.Tools.Submitter == "" {
		c.Tools.Submitter = defaultSubmitterCommand
	}
	if c.Tools.Timeout <= 0 {
		c.Tools.Timeout = defaultToolTimeoutSecs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
