package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// CLIFlags is the snapshot of global flags a command runs with.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries everything PersistentPreRunE resolved.
type CLIContext struct {
	Flags   CLIFlags
	Cfg     *config.Config
	CfgPath string
	Env     config.EnvOverrides
	Logger  *slog.Logger

	closeLog func()
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. Commands
// only run after it, so a missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLIContext missing from command context")
	}

	return cc
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ttsu-sync",
		Short: "Import ttsu reading statistics from Google Drive",
		Long: `ttsu-sync reads the statistics exports that the ttsu reader saves to
Google Drive and merges them into a local reading log.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext()
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext); ok && cc.closeLog != nil {
				cc.closeLog()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newReloadCmd())
	cmd.AddCommand(newDisableCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogCmd())

	return cmd
}

// loadCLIContext resolves the config chain and builds the logger.
func loadCLIContext() (*CLIContext, error) {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}

	env := config.ReadEnvOverrides()

	cfg, cfgPath, err := config.Resolve(env, config.CLIOverrides{ConfigPath: flags.ConfigPath})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := buildLogger(cfg, flags, os.Stderr)
	if err != nil {
		return nil, err
	}

	logger.Debug("config resolved", slog.String("path", cfgPath))

	return &CLIContext{
		Flags:    flags,
		Cfg:      cfg,
		CfgPath:  cfgPath,
		Env:      env,
		Logger:   logger,
		closeLog: closeLog,
	}, nil
}

// logFilePerms restricts the log file to the owner.
const logFilePerms = 0o600

// buildLogger creates an slog.Logger from the config and CLI flags. The
// config log level is the baseline; --verbose and --quiet override it. With
// log_file set, logs go to that file instead of stderr.
func buildLogger(cfg *config.Config, flags CLIFlags, stderr *os.File) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Logging.LogLevel)

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	var (
		out      io.Writer = stderr
		closeLog           = func() {}
		tty                = isTerminal(stderr)
	)

	if cfg.Logging.LogFile != "" {
		f, err := os.OpenFile(cfg.Logging.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerms)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		out = f
		tty = false
		closeLog = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch cfg.Logging.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		if tty {
			handler = slog.NewTextHandler(out, opts)
		} else {
			handler = slog.NewJSONHandler(out, opts)
		}
	}

	return slog.New(handler), closeLog, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// errCanceledByUser marks a declined confirmation. main reports it without
// the "Error:" prefix.
var errCanceledByUser = errors.New("canceled")

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	if errors.Is(err, errCanceledByUser) {
		fmt.Fprintln(os.Stderr, "Canceled.")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
