package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ttsu-sync/internal/backup"
	"github.com/tonimelisma/ttsu-sync/internal/config"
	"github.com/tonimelisma/ttsu-sync/internal/readlog"
	"github.com/tonimelisma/ttsu-sync/internal/state"
	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the globals to their zero values. Tests drive flags through
// cmd.SetArgs() + cmd.Execute() instead of setting globals directly.

// isolateEnv points every path lookup at a temp directory and returns the
// config and state paths.
func isolateEnv(t *testing.T) (cfgPath, statePath string) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvClientID, "")
	t.Setenv(config.EnvClientSecret, "")

	statePath = filepath.Join(dir, "state.db")
	t.Setenv(config.EnvStatePath, statePath)

	return filepath.Join(dir, "config.toml"), statePath
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	return cmd.ExecuteContext(context.Background())
}

func TestBuildLogger_Levels(t *testing.T) {
	cfg := config.DefaultConfig()
	ctx := context.Background()

	tests := []struct {
		name     string
		level    string
		flags    CLIFlags
		enabled  slog.Level
		disabled slog.Level
	}{
		{"config default", "info", CLIFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"config warn", "warn", CLIFlags{}, slog.LevelWarn, slog.LevelInfo},
		{"verbose wins", "error", CLIFlags{Verbose: true}, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet wins", "debug", CLIFlags{Quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Logging.LogLevel = tt.level

			logger, closeLog, err := buildLogger(cfg, tt.flags, os.Stderr)
			require.NoError(t, err)
			defer closeLog()

			assert.True(t, logger.Handler().Enabled(ctx, tt.enabled))
			assert.False(t, logger.Handler().Enabled(ctx, tt.disabled))
		})
	}
}

func TestBuildLogger_FileIsJSONInAutoMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogFile = filepath.Join(t.TempDir(), "ttsu.log")

	logger, closeLog, err := buildLogger(cfg, CLIFlags{}, os.Stderr)
	require.NoError(t, err)

	logger.Info("hello", slog.Int("n", 1))
	closeLog()

	data, err := os.ReadFile(cfg.Logging.LogFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{"), "auto format without a terminal is JSON")
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestBuildLogger_ExplicitTextFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogFormat = "text"
	cfg.Logging.LogFile = filepath.Join(t.TempDir(), "ttsu.log")

	logger, closeLog, err := buildLogger(cfg, CLIFlags{}, os.Stderr)
	require.NoError(t, err)

	logger.Info("hello")
	closeLog()

	data, err := os.ReadFile(cfg.Logging.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

func TestBuildLogger_BadLogFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogFile = filepath.Join(t.TempDir(), "missing", "dir", "ttsu.log")

	_, _, err := buildLogger(cfg, CLIFlags{}, os.Stderr)
	require.Error(t, err)
}

func TestPrompter_Confirm(t *testing.T) {
	ctx := context.Background()

	newTestPrompter := func(input string, interactive bool) (*prompter, *bytes.Buffer) {
		out := &bytes.Buffer{}

		return &prompter{
			in:          bufio.NewReader(strings.NewReader(input)),
			out:         out,
			interactive: interactive,
		}, out
	}

	t.Run("yes", func(t *testing.T) {
		p, out := newTestPrompter("y\n", true)
		assert.True(t, p.Confirm(ctx, "Proceed?"))
		assert.Contains(t, out.String(), "Proceed?\n[y/N]: ")
	})

	t.Run("anything else is no", func(t *testing.T) {
		p, _ := newTestPrompter("nope\n", true)
		assert.False(t, p.Confirm(ctx, "Proceed?"))
	})

	t.Run("eof is no", func(t *testing.T) {
		p, _ := newTestPrompter("", true)
		assert.False(t, p.Confirm(ctx, "Proceed?"))
	})

	t.Run("non-interactive declines", func(t *testing.T) {
		p, out := newTestPrompter("yes\n", false)
		assert.False(t, p.Confirm(ctx, "Proceed?"))
		assert.Contains(t, out.String(), "--yes")
	})

	t.Run("assume yes", func(t *testing.T) {
		p, out := newTestPrompter("", false)
		p.assumeYes = true
		assert.True(t, p.Confirm(ctx, "Proceed?"))
		assert.Empty(t, out.String())
	})

	t.Run("canceled context", func(t *testing.T) {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		defer r.Close()
		defer w.Close()

		p := &prompter{in: bufio.NewReader(r), out: &bytes.Buffer{}, interactive: true}

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		assert.False(t, p.Confirm(cctx, "Proceed?"))
	})
}

func TestIsYes(t *testing.T) {
	for _, s := range []string{"y", "Y", "yes", " YES \n"} {
		assert.True(t, isYes(s), s)
	}

	for _, s := range []string{"", "n", "no", "yep"} {
		assert.False(t, isYes(s), s)
	}
}

func TestStderrNotifier(t *testing.T) {
	var buf bytes.Buffer

	stderrNotifier(&buf)(context.Background(), "Sync complete!")
	assert.Equal(t, "Sync complete!\n", buf.String())
}

func TestNewHTTPClient_UsesDataTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Network.DataTimeout = "90s"

	assert.Equal(t, 90*time.Second, newHTTPClient(cfg).Timeout)
}

func TestCommands_RegisteredSurface(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"setup", "sync", "reload", "disable", "status", "log"} {
		assert.Contains(t, names, want)
	}
}

func TestSyncCmd_RequiresClientID(t *testing.T) {
	cfgPath, _ := isolateEnv(t)

	err := runRoot(t, "--config", cfgPath, "sync")
	require.ErrorIs(t, err, config.ErrMissingClientID)
}

func TestSyncCmd_NotConfigured(t *testing.T) {
	cfgPath, _ := isolateEnv(t)
	t.Setenv(config.EnvClientID, "client")

	err := runRoot(t, "--config", cfgPath, "sync")
	require.ErrorIs(t, err, sync.ErrNotConfigured)
}

func TestSetupCmd_WritesTemplateWithoutClient(t *testing.T) {
	cfgPath, _ := isolateEnv(t)

	err := runRoot(t, "--config", cfgPath, "setup")
	require.ErrorIs(t, err, config.ErrMissingClientID)
	assert.Contains(t, err.Error(), cfgPath)

	_, statErr := os.Stat(cfgPath)
	require.NoError(t, statErr)

	err = runRoot(t, "--config", cfgPath, "setup")
	require.ErrorIs(t, err, config.ErrMissingClientID)
	assert.NotContains(t, err.Error(), "template", "an existing file is left alone")
}

func TestReloadCmd_DeclinedWithoutTerminal(t *testing.T) {
	cfgPath, _ := isolateEnv(t)
	t.Setenv(config.EnvClientID, "client")

	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)

	stdin := os.Stdin
	os.Stdin = devNull
	t.Cleanup(func() {
		os.Stdin = stdin
		devNull.Close()
	})

	err = runRoot(t, "--config", cfgPath, "reload")
	require.ErrorIs(t, err, errCanceledByUser)
}

func TestDisableCmd_AlreadyDisabled(t *testing.T) {
	cfgPath, _ := isolateEnv(t)

	require.NoError(t, runRoot(t, "--config", cfgPath, "disable", "--yes"))
}

func TestDisableCmd_ClearsCredentials(t *testing.T) {
	cfgPath, statePath := isolateEnv(t)
	ctx := context.Background()

	store, err := state.Open(ctx, statePath, discardLogger())
	require.NoError(t, err)
	store.Credentials().Enable(ctx, "root-id")
	store.Credentials().SaveToken(ctx, "access", "refresh", time.Now().Add(time.Hour))
	require.NoError(t, store.Close())

	require.NoError(t, runRoot(t, "--config", cfgPath, "disable", "--yes"))

	store, err = state.Open(ctx, statePath, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	creds := store.Credentials().Get(ctx)
	assert.False(t, creds.SyncEnabled)
	assert.Empty(t, creds.RootFolderID)
	assert.Empty(t, creds.RefreshToken)
}

func TestLogCmd_RejectsNegativeLimit(t *testing.T) {
	cfgPath, _ := isolateEnv(t)

	err := runRoot(t, "--config", cfgPath, "log", "--limit", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit")
}

func TestBuildStatus(t *testing.T) {
	cfgPath, statePath := isolateEnv(t)
	ctx := context.Background()

	store, err := state.Open(ctx, statePath, discardLogger())
	require.NoError(t, err)
	store.Credentials().Enable(ctx, "root-id")
	store.Credentials().SetLastSync(ctx, time.Now().Add(-3*time.Minute))
	require.NoError(t, store.SaveLog(ctx, []readlog.Record{
		{Date: "2026-01-01", Minutes: 10, Characters: 100, Title: "A"},
	}, []string{"A"}))

	run, err := store.BeginRun(ctx, state.RunManual)
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run, 1, nil))
	require.NoError(t, store.Close())

	cfg, path, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: cfgPath})
	require.NoError(t, err)

	cc := &CLIContext{Cfg: cfg, CfgPath: path, Logger: discardLogger()}

	a, err := openApp(ctx, cc, appOptions{})
	require.NoError(t, err)
	defer a.Close()

	out, err := buildStatus(ctx, cc, a)
	require.NoError(t, err)

	assert.Equal(t, "Active (synced 3 min ago)", out.Summary)
	assert.True(t, out.Enabled)
	assert.Equal(t, "root-id", out.RootFolderID)
	assert.NotNil(t, out.LastSync)
	assert.Equal(t, "5m0s", out.PollInterval)
	assert.Equal(t, "skip_duplicate", out.Policy)
	assert.Equal(t, 1, out.Records)
	assert.Equal(t, []string{"A"}, out.RecentBooks)
	assert.Equal(t, statePath, out.StatePath)
	assert.Zero(t, out.WatchPID)
	require.NotNil(t, out.LastRun)
	assert.Equal(t, "sync", out.LastRun.Kind)
	assert.Equal(t, 1, out.LastRun.Imported)
	assert.NotNil(t, out.LastRun.FinishedAt)
}

func TestBuildStatus_Backup(t *testing.T) {
	cfgPath, _ := isolateEnv(t)
	ctx := context.Background()

	backupPath := filepath.Join(t.TempDir(), "log.yaml")

	cfg, path, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: cfgPath})
	require.NoError(t, err)
	cfg.Sync.BackupPath = backupPath

	cc := &CLIContext{Cfg: cfg, CfgPath: path, Logger: discardLogger()}

	a, err := openApp(ctx, cc, appOptions{})
	require.NoError(t, err)
	defer a.Close()

	out, err := buildStatus(ctx, cc, a)
	require.NoError(t, err)
	assert.Equal(t, backupPath, out.BackupPath)
	assert.Nil(t, out.BackupAt)
	assert.Contains(t, describeBackup(out), "not written yet")

	exported := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, backup.Save(backupPath, &backup.Document{ExportedAt: exported}))

	out, err = buildStatus(ctx, cc, a)
	require.NoError(t, err)
	require.NotNil(t, out.BackupAt)
	assert.True(t, exported.Equal(*out.BackupAt))
	assert.Contains(t, describeBackup(out), "exported")
}

func TestDescribeRun(t *testing.T) {
	at := time.Date(2020, 5, 6, 7, 8, 0, 0, time.Local)

	assert.Contains(t, describeRun(&runOutput{Kind: "auto", StartedAt: at}), "did not finish")
	assert.Contains(t, describeRun(&runOutput{Kind: "sync", FinishedAt: &at, Error: "boom"}), "failed: boom")
	assert.Contains(t, describeRun(&runOutput{Kind: "reload", FinishedAt: &at, Imported: 4}), "imported 4")
}
