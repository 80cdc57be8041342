package config

const (
	defaultQueueDir          = "~/.local/share/hopper/queue"
	defaultStagingDir        = "~/.local/share/hopper/staging"
	defaultDraftsDir         = "~/.local/share/hopper/drafts"
	defaultCompletedDir      = "~/.local/share/hopper/completed"
	defaultFailedDir         = "~/.local/share/hopper/failed"
	defaultLogDir            = "~/.local/share/hopper/logs"
	defaultStateFile         = "~/.local/share/hopper/state.json"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultAPIPollInterval   = 60
	defaultBatchTimeoutHours = 3
	defaultMaxPerHour        = 1
	defaultMinIntervalMins   = 60
	defaultQueuePollSeconds  = 300
	defaultDefinitionExt     = ".md"
	defaultCollectorCommand  = "collect-prp-context"
	defaultBuilderCommand    = "build-batch-request"
	defaultSubmitterCommand  = "submit-batch"
	defaultToolTimeoutSecs   = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			QueueDir:     defaultQueueDir,
			StagingDir:   defaultStagingDir,
			DraftsDir:    defaultDraftsDir,
			CompletedDir: defaultCompletedDir,
			FailedDir:    defaultFailedDir,
			LogDir:       defaultLogDir,
			StateFile:    defaultStateFile,
		},
		API: API{
			PollInterval:      defaultAPIPollInterval,
			BatchTimeoutHours: defaultBatchTimeoutHours,
		},
		RateLimit: RateLimit{
			MaxPerHour:         defaultMaxPerHour,
			MinIntervalMinutes: defaultMinIntervalMins,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollSeconds,
			DefinitionExt:     defaultDefinitionExt,
		},
		Tools: Tools{
			Collector: defaultCollectorCommand,
			Builder:   defaultBuilderCommand,
			Submitter: defaultSubmitterCommand,
			Timeout:   defaultToolTimeoutSecs,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Queue:          true,
			Items:          true,
			Errors:         true,
			Deferrals:      false,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
