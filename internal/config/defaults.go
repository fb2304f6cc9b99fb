package config

import "time"

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file except for the OAuth
// client, which every user registers themselves.
const (
	defaultRootFolderName    = "ttsu"
	defaultStatisticsPattern = "statistics"
	defaultPageSize          = 100
	defaultPollInterval      = "5m"
	defaultConflictPolicy    = "skip_duplicate"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultConnectTimeout    = "10s"
	defaultDataTimeout       = "60s"
)

const (
	defaultPollIntervalDuration   = 5 * time.Minute
	defaultConnectTimeoutDuration = 10 * time.Second
	defaultDataTimeoutDuration    = 60 * time.Second
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Drive: DriveConfig{
			RootFolderName:    defaultRootFolderName,
			StatisticsPattern: defaultStatisticsPattern,
			PageSize:          defaultPageSize,
		},
		Sync: SyncConfig{
			PollInterval:   defaultPollInterval,
			ConflictPolicy: defaultConflictPolicy,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
	}
}
