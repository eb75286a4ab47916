package constants

import "time"

const (
	AppName            = "petminder"
	Version            = "v0.1.0"
	DefaultKeyringUser = "remote-connection"
	DefaultConfigDir   = "~/.config/petminder"
	DefaultStorePath   = "~/.config/petminder/petminder.db"
	DefaultConfigFile  = "config.yaml"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DateTimeFormat is used when printing execution dates
	DateTimeFormat = "2006-01-02 15:04"

	// Reminder engine defaults
	DefaultSnoozeDuration = 5 * time.Minute
	MaxCountdownDuration  = 30 * 24 * time.Hour

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "petminder-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "petminder-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.petminder"

	// Remote change feed
	RemoteNotifyChannel    = "petminder_reminders"
	ListenerMinReconnect   = 10 * time.Second
	ListenerMaxReconnect   = time.Minute
	ListenerPingInterval   = 90 * time.Second
	DefaultRemoteSchema    = "petminder"
	DefaultMetricsAddr     = ":9464"
	DefaultPresenter       = "terminal"
	EnvPrefix              = "PETMINDER_"
	EnvTestPostgresDSN     = "PETMINDER_TEST_POSTGRES_DSN"
	EnvDevInvariantChecks  = "PETMINDER_DEV"
	DefaultTelegramTimeout = 60
)
