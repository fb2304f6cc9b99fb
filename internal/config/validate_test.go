package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty root folder", func(c *Config) { c.Drive.RootFolderName = "  " }, "root_folder_name"},
		{"empty pattern", func(c *Config) { c.Drive.StatisticsPattern = "" }, "statistics_pattern"},
		{"page size zero", func(c *Config) { c.Drive.PageSize = 0 }, "page_size"},
		{"page size too large", func(c *Config) { c.Drive.PageSize = 1001 }, "page_size"},
		{"poll interval garbage", func(c *Config) { c.Sync.PollInterval = "often" }, "poll_interval: invalid duration"},
		{"poll interval too short", func(c *Config) { c.Sync.PollInterval = "59s" }, "poll_interval: must be >= 1m0s"},
		{"unknown policy", func(c *Config) { c.Sync.ConflictPolicy = "newest" }, "conflict_policy: must be one of"},
		{"overwrite_all reserved", func(c *Config) { c.Sync.ConflictPolicy = "overwrite_all" }, "only used by reload"},
		{"backup extension", func(c *Config) { c.Sync.BackupPath = "/tmp/log.txt" }, "backup_path"},
		{"log level", func(c *Config) { c.Logging.LogLevel = "trace" }, "log_level"},
		{"log format", func(c *Config) { c.Logging.LogFormat = "xml" }, "log_format"},
		{"connect timeout", func(c *Config) { c.Network.ConnectTimeout = "500ms" }, "connect_timeout"},
		{"data timeout", func(c *Config) { c.Network.DataTimeout = "1s" }, "data_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AcceptedValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.ConflictPolicy = "overwrite_by_key"
	cfg.Sync.BackupPath = "~/backup/LOG.YML"
	cfg.Sync.PollInterval = "1m"
	cfg.Drive.PageSize = 1000
	cfg.Logging.LogFormat = "text"

	assert.NoError(t, Validate(cfg))
}

func TestValidateAuth(t *testing.T) {
	cfg := DefaultConfig()

	err := ValidateAuth(cfg)
	require.ErrorIs(t, err, ErrMissingClientID)
	assert.Contains(t, err.Error(), EnvClientID)

	cfg.Auth.ClientID = "id"
	assert.NoError(t, ValidateAuth(cfg))
}
