package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
)

// Validation range constants.
const (
	minPollInterval   = 1 * time.Minute
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
	minPageSize       = 1
	maxPageSize       = 1000
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"auto": true, "text": true, "json": true,
}

var validBackupExts = map[string]bool{
	".json": true, ".yaml": true, ".yml": true,
}

// ErrMissingClientID is returned by ValidateAuth when no OAuth client is set.
var ErrMissingClientID = errors.New("auth.client_id is not set")

// Validate checks every field and returns all problems joined.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateDrive(&cfg.Drive)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

// ValidateAuth checks that an OAuth client is configured. Only commands that
// talk to Google Drive need it.
func ValidateAuth(cfg *Config) error {
	if strings.TrimSpace(cfg.Auth.ClientID) == "" {
		return fmt.Errorf("%w: register a desktop OAuth client and set it in the config file or %s",
			ErrMissingClientID, EnvClientID)
	}

	return nil
}

func validateDrive(d *DriveConfig) []error {
	var errs []error

	if strings.TrimSpace(d.RootFolderName) == "" {
		errs = append(errs, errors.New("root_folder_name: must not be empty"))
	}

	if strings.TrimSpace(d.StatisticsPattern) == "" {
		errs = append(errs, errors.New("statistics_pattern: must not be empty"))
	}

	if d.PageSize < minPageSize || d.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("page_size: must be between %d and %d, got %d",
			minPageSize, maxPageSize, d.PageSize))
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("poll_interval", s.PollInterval, minPollInterval)...)

	p, err := readlog.ParsePolicy(s.ConflictPolicy)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("conflict_policy: must be one of skip_duplicate, overwrite_by_key; got %q",
			s.ConflictPolicy))
	case p == readlog.OverwriteAll:
		errs = append(errs, errors.New("conflict_policy: overwrite_all is only used by reload"))
	}

	if s.BackupPath != "" && !validBackupExts[strings.ToLower(filepath.Ext(s.BackupPath))] {
		errs = append(errs, fmt.Errorf("backup_path: must end in .json, .yaml or .yml, got %q", s.BackupPath))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

// validateDurationMin parses value and checks it against minimum.
func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}
