package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set api.key before running Hopper.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag := cmd.Flag("config")
			path := ""
			if configFlag != nil {
				path = strings.TrimSpace(configFlag.Value.String())
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolvedPath)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults shown")
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[paths]")
			fmt.Fprintf(out, "queue_dir = %q\n", cfg.Paths.QueueDir)
			fmt.Fprintf(out, "staging_dir = %q\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "drafts_dir = %q\n", cfg.Paths.DraftsDir)
			fmt.Fprintf(out, "completed_dir = %q\n", cfg.Paths.CompletedDir)
			fmt.Fprintf(out, "failed_dir = %q\n", cfg.Paths.FailedDir)
			fmt.Fprintf(out, "log_dir = %q\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "state_file = %q\n", cfg.Paths.StateFile)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[api]")
			fmt.Fprintf(out, "key = %q\n", redactKey(cfg.API.Key))
			fmt.Fprintf(out, "poll_interval = %d\n", cfg.API.PollInterval)
			fmt.Fprintf(out, "batch_timeout_hours = %d\n", cfg.API.BatchTimeoutHours)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[rate_limit]")
			fmt.Fprintf(out, "max_per_hour = %d\n", cfg.RateLimit.MaxPerHour)
			fmt.Fprintf(out, "min_interval_minutes = %d\n", cfg.RateLimit.MinIntervalMinutes)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[workflow]")
			fmt.Fprintf(out, "queue_poll_interval = %d\n", cfg.Workflow.QueuePollInterval)
			fmt.Fprintf(out, "definition_ext = %q\n", cfg.Workflow.DefinitionExt)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[tools]")
			fmt.Fprintf(out, "collector = %q\n", cfg.Tools.Collector)
			fmt.Fprintf(out, "builder = %q\n", cfg.Tools.Builder)
			fmt.Fprintf(out, "submitter = %q\n", cfg.Tools.Submitter)
			fmt.Fprintf(out, "timeout = %d\n", cfg.Tools.Timeout)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[notifications]")
			fmt.Fprintf(out, "ntfy_topic = %q\n", cfg.Notifications.NtfyTopic)
			fmt.Fprintf(out, "enabled = %s\n", yesNo(cfg.Notifications.NtfyTopic != ""))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[logging]")
			fmt.Fprintf(out, "format = %q\n", cfg.Logging.Format)
			fmt.Fprintf(out, "level = %q\n", cfg.Logging.Level)
			fmt.Fprintf(out, "retention_days = %d\n", cfg.Logging.RetentionDays)
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag := cmd.Flag("config")
			path := ""
			if configFlag != nil {
				path = strings.TrimSpace(configFlag.Value.String())
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolvedPath)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// redactKey masks a credential, keeping just enough to recognize it.
func redactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 4) + key[len(key)-4:]
}
