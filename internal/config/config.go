// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ttsu-sync. Values resolve through
// defaults -> config file -> environment -> CLI flags.
package config

import (
	"time"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	StatePath string        `toml:"state_path"`
	Auth      AuthConfig    `toml:"auth"`
	Drive     DriveConfig   `toml:"drive"`
	Sync      SyncConfig    `toml:"sync"`
	Logging   LoggingConfig `toml:"logging"`
	Network   NetworkConfig `toml:"network"`
}

// AuthConfig holds the Google OAuth client registered for desktop apps.
type AuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DriveConfig controls how the export folders are discovered on Google Drive.
type DriveConfig struct {
	RootFolderName    string `toml:"root_folder_name"`
	StatisticsPattern string `toml:"statistics_pattern"`
	PageSize          int    `toml:"page_size"`
}

// SyncConfig controls the auto-sync period, the reconcile policy for regular
// passes, and the optional backup export written after each import.
type SyncConfig struct {
	PollInterval   string `toml:"poll_interval"`
	ConflictPolicy string `toml:"conflict_policy"`
	BackupPath     string `toml:"backup_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// PollIntervalDuration returns the parsed poll interval, falling back to the
// default for values validation would have rejected.
func (c *Config) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.Sync.PollInterval, defaultPollIntervalDuration)
}

// Policy returns the reconcile policy for regular passes.
func (c *Config) Policy() readlog.Policy {
	p, err := readlog.ParsePolicy(c.Sync.ConflictPolicy)
	if err != nil {
		return readlog.SkipDuplicate
	}

	return p
}

// ConnectTimeout returns the parsed dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return parseDurationOr(c.Network.ConnectTimeout, defaultConnectTimeoutDuration)
}

// DataTimeout returns the parsed whole-request timeout.
func (c *Config) DataTimeout() time.Duration {
	return parseDurationOr(c.Network.DataTimeout, defaultDataTimeoutDuration)
}

// StateDBPath returns the state database path with a leading ~/ expanded.
// An empty state_path resolves to the platform data directory.
func (c *Config) StateDBPath() string {
	if c.StatePath == "" {
		return DefaultStatePath()
	}

	return expandTilde(c.StatePath)
}

// BackupFile returns the backup export path with a leading ~/ expanded, or
// "" when backups are off.
func (c *Config) BackupFile() string {
	return expandTilde(c.Sync.BackupPath)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
