package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/tonimelisma/ttsu-sync/internal/auth"
	"github.com/tonimelisma/ttsu-sync/internal/backup"
	"github.com/tonimelisma/ttsu-sync/internal/config"
	"github.com/tonimelisma/ttsu-sync/internal/gdrive"
	"github.com/tonimelisma/ttsu-sync/internal/state"
	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

// app is the wired object graph for one command invocation.
type app struct {
	store  *state.Store
	orch   *sync.Orchestrator
	backup *backup.Writer
	logger *slog.Logger
}

// appOptions tunes wiring per command.
type appOptions struct {
	// remote requires an OAuth client in the config.
	remote bool
	// assumeYes answers every confirmation with yes.
	assumeYes bool
}

// openApp opens the state database and wires the authenticator, the Drive
// client, and the orchestrator with CLI collaborators.
func openApp(ctx context.Context, cc *CLIContext, opts appOptions) (*app, error) {
	cfg := cc.Cfg
	logger := cc.Logger

	if opts.remote {
		if err := config.ValidateAuth(cfg); err != nil {
			return nil, err
		}
	}

	store, err := state.Open(ctx, cfg.StateDBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	a := &app{store: store, logger: logger}

	if path := cfg.BackupFile(); path != "" {
		w, err := backup.NewWriter(path, logger)
		if err != nil {
			store.Close()
			return nil, err
		}

		a.backup = w
	}

	httpClient := newHTTPClient(cfg)
	notify := stderrNotifier(os.Stderr)

	oauth := gdrive.NewOAuth(cfg.Auth.ClientID, cfg.Auth.ClientSecret, httpClient, openBrowser, logger)
	authenticator := auth.New(oauth, store.Credentials(), auth.Notifier(notify), logger)
	remote := gdrive.NewClient(gdrive.DefaultBaseURL, httpClient, authenticator, logger, cfg.Network.UserAgent)

	hooks := sync.Hooks{
		Confirm:         newPrompter(os.Stdin, os.Stderr, opts.assumeYes).Confirm,
		Notify:          notify,
		OnLogChanged:    a.logChanged,
		OnStatusChanged: a.statusChanged,
	}

	if a.backup != nil {
		hooks.OnPersisted = a.backup.Hook(a.backupSource)
	}

	orch, err := sync.New(ctx, &sync.Config{
		Remote:            remote,
		Auth:              authenticator,
		Store:             store,
		Credentials:       store.Credentials(),
		Hooks:             hooks,
		RootFolderName:    cfg.Drive.RootFolderName,
		StatisticsPattern: cfg.Drive.StatisticsPattern,
		PageSize:          cfg.Drive.PageSize,
		Policy:            cfg.Policy(),
		PollInterval:      cfg.PollIntervalDuration(),
		Logger:            logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	a.orch = orch

	return a, nil
}

// Close releases the state database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing state database", slog.String("error", err.Error()))
	}
}

func (a *app) backupSource() backup.Source {
	if a.orch == nil {
		return nil
	}

	return a.orch
}

// logChanged is the log-summary collaborator.
func (a *app) logChanged() {
	if a.orch == nil {
		return
	}

	a.logger.Info("reading log updated",
		slog.Int("records", len(a.orch.Log())),
		slog.Any("recent_books", a.orch.RecentBooks()),
	)
}

// statusChanged is the status-line collaborator.
func (a *app) statusChanged() {
	if a.orch == nil {
		return
	}

	a.logger.Debug("status", slog.String("state", a.orch.State().String()))
}

// newHTTPClient applies the network timeouts: connect_timeout bounds the
// dial, data_timeout the whole request.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout()}).DialContext

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.DataTimeout(),
	}
}
