package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
	"github.com/tonimelisma/ttsu-sync/internal/state"
)

// Orchestrator runs setup, manual and automatic passes, full reloads, and
// disable. At most one pass runs at a time: passMu is only ever acquired
// with TryLock on the pass paths, so overlapping triggers are rejected
// instead of queued.
type Orchestrator struct {
	remote  RemoteReader
	auth    Authenticator
	store   Store
	creds   CredentialStore
	hooks   Hooks
	logger  *slog.Logger
	nowFunc func() time.Time

	rootFolderName    string
	statisticsPattern string
	pageSize          int

	passMu gosync.Mutex

	mu           gosync.RWMutex
	state        State
	log          []readlog.Record
	recent       []string
	policy       readlog.Policy
	pollInterval time.Duration
	auto         *AutoSync
}

// New creates an Orchestrator and loads the persisted log. The initial
// state is Idle when the store says sync is enabled with a known root
// folder, Disabled otherwise.
func New(ctx context.Context, cfg *Config) (*Orchestrator, error) {
	if cfg.Remote == nil || cfg.Auth == nil || cfg.Store == nil || cfg.Credentials == nil {
		return nil, errors.New("sync: remote, auth, store and credentials are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	log, err := cfg.Store.LoadLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: loading reading log: %w", err)
	}

	o := &Orchestrator{
		remote:            cfg.Remote,
		auth:              cfg.Auth,
		store:             cfg.Store,
		creds:             cfg.Credentials,
		hooks:             cfg.Hooks.withDefaults(logger),
		logger:            logger,
		nowFunc:           time.Now,
		rootFolderName:    cfg.RootFolderName,
		statisticsPattern: cfg.StatisticsPattern,
		pageSize:          cfg.PageSize,
		log:               log,
		recent:            cfg.Store.LoadRecentBooks(ctx),
		policy:            cfg.Policy,
		pollInterval:      cfg.PollInterval,
		state:             Disabled,
	}

	if o.rootFolderName == "" {
		o.rootFolderName = DefaultRootFolderName
	}

	if o.statisticsPattern == "" {
		o.statisticsPattern = DefaultStatisticsPattern
	}

	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}

	if o.policy == readlog.OverwriteAll {
		logger.Warn("overwrite_all is reserved for reload, using skip_duplicate for regular passes")
		o.policy = readlog.SkipDuplicate
	}

	if cfg.Credentials.Get(ctx).Configured() {
		o.state = Idle
	}

	logger.Debug("orchestrator ready",
		slog.String("state", o.state.String()),
		slog.Int("records", len(log)),
	)

	return o, nil
}

// Setup authorizes interactively, locates the root folder, enables sync,
// runs a first pass, and arms the auto-sync timer. Authorization failure or
// a missing folder returns to Disabled with credentials cleared. A failed
// first pass is returned alongside the armed timer: the configuration stays
// and the next tick retries.
func (o *Orchestrator) Setup(ctx context.Context) (*AutoSync, error) {
	if !o.passMu.TryLock() {
		return nil, ErrSyncInProgress
	}

	previous := o.State()
	o.setState(Configuring)

	folderID, err := o.authorizeAndLocate(ctx)
	if err != nil {
		o.creds.Clear(ctx)
		o.setState(Disabled)
		o.passMu.Unlock()

		if previous != Disabled {
			o.stopAutoSync()
		}

		if notifiable(err) {
			o.hooks.Notify(ctx, setupFailedNotice(err))
		}

		return nil, fmt.Errorf("sync: setup: %w", err)
	}

	o.creds.Enable(ctx, folderID)

	_, passErr := o.runPass(ctx, passRequest{
		kind:   state.RunSetup,
		rootID: folderID,
		policy: o.currentPolicy(),
		since:  o.creds.Get(ctx).LastSync,
	})
	o.passMu.Unlock()

	handle := o.StartAutoSync(ctx)
	interval := o.PollInterval()

	if passErr != nil {
		o.hooks.Notify(ctx, setupPassFailedNotice(interval, passErr))
		return handle, fmt.Errorf("sync: setup: first pass: %w", passErr)
	}

	o.hooks.Notify(ctx, setupNotice(interval))

	return handle, nil
}

// authorizeAndLocate runs interactive authorization and finds the root
// folder by name.
func (o *Orchestrator) authorizeAndLocate(ctx context.Context) (string, error) {
	if ok, err := o.auth.EnsureToken(ctx, true); !ok {
		if err == nil {
			return "", errAuthorization
		}

		return "", fmt.Errorf("%w: %w", errAuthorization, err)
	}

	folderID, err := o.remote.FindRootFolder(ctx, o.rootFolderName)
	if err != nil {
		return "", fmt.Errorf("locating root folder %q: %w", o.rootFolderName, err)
	}

	if folderID == "" {
		o.hooks.Notify(ctx, msgFolderNotFound)
		return "", ErrRootFolderNotFound
	}

	o.logger.Info("root folder located",
		slog.String("name", o.rootFolderName),
		slog.String("folder_id", folderID),
	)

	return folderID, nil
}

// SyncNow runs one manual pass. It never prompts for authorization.
func (o *Orchestrator) SyncNow(ctx context.Context) (*Report, error) {
	creds := o.creds.Get(ctx)
	if !creds.Configured() {
		o.hooks.Notify(ctx, msgNotEnabled)
		return nil, ErrNotConfigured
	}

	if !o.passMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.passMu.Unlock()

	if ok, err := o.auth.EnsureToken(ctx, false); !ok {
		o.hooks.Notify(ctx, msgAuthExpired)
		return nil, fmt.Errorf("sync: %w", gateError(err))
	}

	report, err := o.runPass(ctx, passRequest{
		kind:   state.RunManual,
		rootID: creds.RootFolderID,
		policy: o.currentPolicy(),
		since:  creds.LastSync,
	})
	if err != nil {
		o.hooks.Notify(ctx, syncFailedNotice(err))
		return nil, err
	}

	o.hooks.Notify(ctx, syncCompleteNotice(report.Imported, report.LastSync))

	return report, nil
}

// ReloadAll replaces the whole log with everything on the remote drive after
// two confirmations. When no root folder is known yet it authorizes
// interactively and stores the folder without enabling sync; otherwise it
// only uses the silent gate.
// Finding no book folders or no sessions leaves the log untouched.
func (o *Orchestrator) ReloadAll(ctx context.Context) (*Report, error) {
	if !o.hooks.Confirm(ctx, msgReloadWarning) || !o.hooks.Confirm(ctx, msgReloadFinal) {
		return nil, ErrDeclined
	}

	if !o.passMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.passMu.Unlock()

	rootID := o.creds.Get(ctx).RootFolderID

	if rootID == "" {
		folderID, err := o.authorizeAndLocate(ctx)
		if err != nil {
			if notifiable(err) {
				o.hooks.Notify(ctx, reloadFailedNotice(err))
			}

			return nil, fmt.Errorf("sync: reload: %w", err)
		}

		o.creds.SetRootFolder(ctx, folderID)
		rootID = folderID
	} else if ok, err := o.auth.EnsureToken(ctx, false); !ok {
		o.hooks.Notify(ctx, msgAuthExpired)
		return nil, fmt.Errorf("sync: reload: %w", gateError(err))
	}

	report, err := o.runPass(ctx, passRequest{
		kind:   state.RunReload,
		rootID: rootID,
		policy: readlog.OverwriteAll,
	})
	if err != nil {
		o.hooks.Notify(ctx, reloadFailedNotice(err))
		return nil, err
	}

	switch {
	case report.Folders == 0:
		o.hooks.Notify(ctx, msgNoBookFolders)
	case report.Imported == 0:
		o.hooks.Notify(ctx, msgNoReadingData)
	default:
		o.hooks.Notify(ctx, reloadCompleteNotice(report.Imported, report.Touched))
	}

	return report, nil
}

// Disable clears every credential and stops the timer after confirmation.
// It waits for an in-flight pass to finish first.
func (o *Orchestrator) Disable(ctx context.Context) error {
	if !o.creds.Get(ctx).SyncEnabled {
		o.hooks.Notify(ctx, msgAlreadyDisabled)
		return nil
	}

	if !o.hooks.Confirm(ctx, msgDisableConfirm) {
		return ErrDeclined
	}

	o.stopAutoSync()

	o.passMu.Lock()
	o.creds.Clear(ctx)
	o.setState(Disabled)
	o.passMu.Unlock()

	o.logger.Info("sync disabled")
	o.hooks.Notify(ctx, msgDisabled)

	return nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.state
}

// Log returns a copy of the in-memory reading log.
func (o *Orchestrator) Log() []readlog.Record {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]readlog.Record, len(o.log))
	copy(out, o.log)

	return out
}

// RecentBooks returns a copy of the recent-books list.
func (o *Orchestrator) RecentBooks() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]string, len(o.recent))
	copy(out, o.recent)

	return out
}

// PollInterval returns the auto-sync period.
func (o *Orchestrator) PollInterval() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.pollInterval
}

// SetPollInterval changes the auto-sync period, applying it to a running
// timer.
func (o *Orchestrator) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	o.mu.Lock()
	o.pollInterval = d
	auto := o.auto
	o.mu.Unlock()

	if auto != nil {
		auto.setInterval(d)
	}
}

// SetPolicy changes the policy for later manual and automatic passes.
// OverwriteAll is ignored.
func (o *Orchestrator) SetPolicy(p readlog.Policy) {
	if p == readlog.OverwriteAll {
		o.logger.Warn("ignoring overwrite_all for regular passes")
		return
	}

	o.mu.Lock()
	o.policy = p
	o.mu.Unlock()
}

func (o *Orchestrator) currentPolicy() readlog.Policy {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.policy
}

// errAuthorization stands in when an Authenticator refuses without a reason.
var errAuthorization = errors.New("authorization failed")

// notifiable reports whether an authorize-and-locate failure still needs a
// notice. A missing folder and a failed consent were already reported.
func notifiable(err error) bool {
	return !errors.Is(err, ErrRootFolderNotFound) && !errors.Is(err, errAuthorization)
}

func gateError(err error) error {
	if err == nil {
		return errAuthorization
	}

	return err
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	changed := o.state != s
	o.state = s
	o.mu.Unlock()

	if changed {
		o.logger.Debug("state changed", slog.String("state", s.String()))
		o.hooks.OnStatusChanged()
	}
}
