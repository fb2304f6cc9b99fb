package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/ttsu-sync/internal/config"
	"github.com/tonimelisma/ttsu-sync/internal/readlog"
	"github.com/tonimelisma/ttsu-sync/internal/state"
	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

// errWatchDisabled stops the watch group once sync was disabled elsewhere.
var errWatchDisabled = errors.New("sync disabled")

// fsWatcher is the subset of fsnotify the config watcher needs.
type fsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(name string) error { return f.w.Add(name) }
func (f *fsnotifyWatcher) Close() error { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error { return f.w.Errors }

// tunable is what a config reload can change on a running orchestrator.
type tunable interface {
	SetPollInterval(d time.Duration)
	SetPolicy(p readlog.Policy)
}

// credentialReader reports whether sync is still enabled.
type credentialReader interface {
	Get(ctx context.Context) state.Credentials
}

// runWatch keeps the process alive while the auto-sync timer runs. It holds
// the PID lock and reloads the config on file change or SIGHUP. It returns
// when ctx is canceled or sync gets disabled.
func runWatch(ctx context.Context, cc *CLIContext, a *app, handle *sync.AutoSync) error {
	defer handle.Stop()

	cleanup, err := writePIDFile(watchPIDPath(cc.Cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	holder := config.NewHolder(cc.Cfg, cc.CfgPath, cc.Env)
	reasons := make(chan string, 1)
	logger := cc.Logger

	statusf(cc.Flags.Quiet, "Watching for new reading sessions every %s. Press Ctrl-C to stop.\n",
		a.orch.PollInterval())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reloadSignals(gctx, reasons)
	})

	g.Go(func() error {
		w, err := newFsnotifyWatcher()
		if err != nil {
			logger.Warn("config hot reload unavailable", slog.String("error", err.Error()))
			return nil
		}
		defer w.Close()

		return watchConfigFile(gctx, w, holder.Path(), reasons, logger)
	})

	g.Go(func() error {
		return reloadLoop(gctx, holder, a.orch, a.store.Credentials(), reasons, logger)
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-handle.Done():
			if gctx.Err() != nil {
				return nil
			}

			return errWatchDisabled
		}
	})

	err = g.Wait()
	if errors.Is(err, errWatchDisabled) {
		statusf(cc.Flags.Quiet, "Sync was disabled, stopping.\n")
		return nil
	}

	return err
}

// watchConfigFile turns writes to the config file into reload requests. The
// directory is watched because editors replace files by rename.
func watchConfigFile(ctx context.Context, w fsWatcher, path string, reasons chan<- string, logger *slog.Logger) error {
	path = filepath.Clean(path)

	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn("not watching config file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}

			logger.Debug("config file changed", slog.String("op", ev.Op.String()))
			requestReload(reasons, "config file changed")
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// reloadLoop applies each reload request. A bad config file keeps the
// running settings. Disabled sync ends the watch.
func reloadLoop(
	ctx context.Context, holder *config.Holder, orch tunable, creds credentialReader,
	reasons <-chan string, logger *slog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-reasons:
			if !creds.Get(ctx).Configured() {
				logger.Info("sync no longer enabled, stopping watch", slog.String("trigger", reason))
				return errWatchDisabled
			}

			prev, cur, err := holder.Reload()
			if err != nil {
				logger.Warn("config reload failed, keeping current settings",
					slog.String("trigger", reason),
					slog.String("error", err.Error()),
				)

				continue
			}

			applyConfig(orch, prev, cur, logger)
		}
	}
}

// applyConfig pushes the reloadable settings to the orchestrator and warns
// about the ones that need a restart.
func applyConfig(orch tunable, prev, cur *config.Config, logger *slog.Logger) {
	if d := cur.PollIntervalDuration(); d != prev.PollIntervalDuration() {
		orch.SetPollInterval(d)
	}

	if p := cur.Policy(); p != prev.Policy() {
		orch.SetPolicy(p)
		logger.Info("conflict policy changed", slog.String("policy", p.String()))
	}

	if cur.StateDBPath() != prev.StateDBPath() || cur.Auth != prev.Auth ||
		cur.Drive != prev.Drive || cur.Network != prev.Network ||
		cur.Logging != prev.Logging || cur.Sync.BackupPath != prev.Sync.BackupPath {
		logger.Warn("some config changes take effect only after restart")
	}
}
