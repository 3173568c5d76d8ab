package config

// LockSuffix is appended to the schedule file path to form the advisory marker.
const LockSuffix = ".lock"

const (
	defaultConfigPath          = "~/.config/tempodel/config.toml"
	defaultScheduleFile        = "~/.local/share/tempodel/schedule.json"
	defaultLogDir              = "~/.local/share/tempodel/logs"
	defaultHistoryPath         = "~/.local/share/tempodel/history.db"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultCheckInterval       = 60
	defaultLockRetries         = 10
	defaultLockRetryDelayMS    = 200
	defaultLockStaleSeconds    = 300
	defaultNotifyTimeout       = 10
	defaultHistoryRetention    = 90
	defaultAPIBind             = "127.0.0.1:7491"
	scheduleFileEnv            = "TEMPODEL_SCHEDULE_FILE"
	apiTokenEnv                = "TEMPODEL_API_TOKEN"
	maxLockRetryBudgetMS       = 5000
	minCheckIntervalSeconds    = 1
	errorBackoffIntervalFactor = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScheduleFile: defaultScheduleFile,
			LogDir:       defaultLogDir,
		},
		Checker: Checker{
			IntervalSeconds:     defaultCheckInterval,
			ErrorBackoffSeconds: defaultCheckInterval * errorBackoffIntervalFactor,
			StartupCleanup:      true,
			WatchSchedule:       true,
		},
		Lock: Lock{
			Retries:      defaultLockRetries,
			RetryDelayMS: defaultLockRetryDelayMS,
			StaleSeconds: defaultLockStaleSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Failures:       true,
			Lifecycle:      false,
		},
		History: History{
			Enabled:       true,
			Path:          defaultHistoryPath,
			RetentionDays: defaultHistoryRetention,
		},
		API: API{
			Bind: defaultAPIBind,
		},
	}
}
