package config

const (
	defaultLogDir               = "~/.local/share/seqwatch/logs"
	defaultStateDir             = "~/.local/share/seqwatch"
	defaultLogRetentionDays     = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultPollInterval         = 60
	defaultNudgeDebounceMS      = 2000
	defaultAnalysisPlatform     = "NovaSeq X Plus"
	defaultRegistryURL          = "http://localhost:8080/api"
	defaultRegistryTimeout      = 30
	defaultTriggerPrefix        = "gmc_norr_seqdata"
	defaultEventHistory         = HistoryJournal
	defaultDedupWindowDays      = 7
	defaultEventRequestTimeout  = 10
	defaultJournalRetentionDays = 30
	defaultNotifyTimeout        = 10
)

// Event history backends consulted by the deduplicator.
const (
	HistoryJournal = "journal"
	HistoryRemote  = "remote"
	HistoryNone    = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Sensor: Sensor{
			PollInterval:      defaultPollInterval,
			AnalysisPlatforms: []string{defaultAnalysisPlatform},
			NudgeDebounceMS:   defaultNudgeDebounceMS,
		},
		Registry: Registry{
			URL:            defaultRegistryURL,
			TimeoutSeconds: defaultRegistryTimeout,
		},
		Events: Events{
			TriggerPrefix:        defaultTriggerPrefix,
			History:              defaultEventHistory,
			DedupWindowDays:      defaultDedupWindowDays,
			RequestTimeout:       defaultEventRequestTimeout,
			Journal:              true,
			JournalRetentionDays: defaultJournalRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout:      defaultNotifyTimeout,
			IncompleteDirectory: true,
			DuplicateRun:        true,
			PollFailures:        true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
