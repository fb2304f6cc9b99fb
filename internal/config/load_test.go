package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
state_path = "/var/lib/ttsu/state.db"

[auth]
client_id = "abc.apps.googleusercontent.com"
client_secret = "shh"

[drive]
root_folder_name = "reader"
statistics_pattern = "stats"
page_size = 200

[sync]
poll_interval = "15m"
conflict_policy = "overwrite_by_key"
backup_path = "/tmp/log.yaml"

[logging]
log_level = "debug"
log_format = "json"
log_file = "/tmp/ttsu.log"

[network]
connect_timeout = "5s"
data_timeout = "2m"
user_agent = "ttsu-test"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ttsu/state.db", cfg.StatePath)
	assert.Equal(t, "abc.apps.googleusercontent.com", cfg.Auth.ClientID)
	assert.Equal(t, "shh", cfg.Auth.ClientSecret)
	assert.Equal(t, "reader", cfg.Drive.RootFolderName)
	assert.Equal(t, "stats", cfg.Drive.StatisticsPattern)
	assert.Equal(t, 200, cfg.Drive.PageSize)
	assert.Equal(t, 15*time.Minute, cfg.PollIntervalDuration())
	assert.Equal(t, readlog.OverwriteByKey, cfg.Policy())
	assert.Equal(t, "/tmp/log.yaml", cfg.BackupFile())
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
	assert.Equal(t, "/tmp/ttsu.log", cfg.Logging.LogFile)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 2*time.Minute, cfg.DataTimeout())
	assert.Equal(t, "ttsu-test", cfg.Network.UserAgent)
	assert.Equal(t, "/var/lib/ttsu/state.db", cfg.StateDBPath())
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[sync]
poll_interval = "10m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.PollIntervalDuration())
	assert.Equal(t, defaultRootFolderName, cfg.Drive.RootFolderName)
	assert.Equal(t, defaultStatisticsPattern, cfg.Drive.StatisticsPattern)
	assert.Equal(t, defaultPageSize, cfg.Drive.PageSize)
	assert.Equal(t, readlog.SkipDuplicate, cfg.Policy())
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
	assert.Equal(t, defaultConnectTimeoutDuration, cfg.ConnectTimeout())
	assert.Empty(t, cfg.BackupFile())
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, `[sync
poll_interval = `)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	path := writeTestConfig(t, `
[sync]
poll_intervl = "10m"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "sync.poll_intervl"`)
	assert.Contains(t, err.Error(), `did you mean "sync.poll_interval"`)
}

func TestLoad_ValidationErrorsAccumulate(t *testing.T) {
	path := writeTestConfig(t, `
[sync]
poll_interval = "30s"

[logging]
log_level = "verbose"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "poll_interval")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoadOrDefault_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOrDefault_ExistingFile(t *testing.T) {
	path := writeTestConfig(t, `
[drive]
root_folder_name = "books"
`)

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "books", cfg.Drive.RootFolderName)
}

func TestResolve_Precedence(t *testing.T) {
	envPath := writeTestConfig(t, `
[drive]
root_folder_name = "from-env-file"
`)
	cliPath := writeTestConfig(t, `
[auth]
client_id = "file-id"

[drive]
root_folder_name = "from-cli-file"
`)

	t.Run("cli path wins over env path", func(t *testing.T) {
		cfg, path, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
		require.NoError(t, err)
		assert.Equal(t, cliPath, path)
		assert.Equal(t, "from-cli-file", cfg.Drive.RootFolderName)
		assert.Equal(t, "file-id", cfg.Auth.ClientID)
	})

	t.Run("env path used without cli", func(t *testing.T) {
		cfg, path, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{})
		require.NoError(t, err)
		assert.Equal(t, envPath, path)
		assert.Equal(t, "from-env-file", cfg.Drive.RootFolderName)
	})

	t.Run("env values override the file", func(t *testing.T) {
		cfg, _, err := Resolve(EnvOverrides{
			ClientID:  "env-id",
			StatePath: "/tmp/env.db",
		}, CLIOverrides{ConfigPath: cliPath})
		require.NoError(t, err)
		assert.Equal(t, "env-id", cfg.Auth.ClientID)
		assert.Equal(t, "/tmp/env.db", cfg.StateDBPath())
	})
}

func TestResolve_InvalidFileReturnsPath(t *testing.T) {
	path := writeTestConfig(t, `bogus = 1`)

	_, got, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	require.Error(t, err)
	assert.Equal(t, path, got)
}

func TestConfig_HelpersFallBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.PollInterval = "nonsense"
	cfg.Sync.ConflictPolicy = "nonsense"
	cfg.Network.ConnectTimeout = "-1s"
	cfg.Network.DataTimeout = ""

	assert.Equal(t, defaultPollIntervalDuration, cfg.PollIntervalDuration())
	assert.Equal(t, readlog.SkipDuplicate, cfg.Policy())
	assert.Equal(t, defaultConnectTimeoutDuration, cfg.ConnectTimeout())
	assert.Equal(t, defaultDataTimeoutDuration, cfg.DataTimeout())
}

func TestConfig_StateDBPathExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.StatePath = "~/ttsu/state.db"
	assert.Equal(t, filepath.Join(home, "ttsu", "state.db"), cfg.StateDBPath())

	cfg.StatePath = ""
	assert.Equal(t, DefaultStatePath(), cfg.StateDBPath())
}
