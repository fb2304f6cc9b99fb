package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/ttsu-sync/internal/gdrive"
	"github.com/tonimelisma/ttsu-sync/internal/readlog"
	"github.com/tonimelisma/ttsu-sync/internal/state"
)

// passRequest describes one pass. A zero since reads every statistics file.
type passRequest struct {
	kind   state.RunKind
	rootID string
	policy readlog.Policy
	since  time.Time
}

// runPass executes one pass with panic recovery and records it as a sync
// run. The caller holds passMu.
func (o *Orchestrator) runPass(ctx context.Context, req passRequest) (report *Report, err error) {
	run, beginErr := o.store.BeginRun(ctx, req.kind)
	if beginErr != nil {
		o.logger.Warn("could not record sync run start", slog.String("error", beginErr.Error()))
		run = nil
	}

	runID := uuid.New().String()
	if run != nil {
		runID = run.ID
	}

	logger := o.logger.With(slog.String("run_id", runID), slog.String("kind", string(req.kind)))

	o.setState(Syncing)

	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("sync: panic in %s pass: %v", req.kind, r)
			logger.Error("pass panicked", slog.Any("panic", r))
		}

		o.setState(o.restingState(ctx))

		if run == nil {
			return
		}

		imported := 0
		if report != nil {
			imported = report.Imported
		}

		if finishErr := o.store.FinishRun(ctx, run, imported, err); finishErr != nil {
			logger.Warn("could not record sync run finish", slog.String("error", finishErr.Error()))
		}
	}()

	start := o.nowFunc()

	logger.Info("pass starting",
		slog.String("policy", req.policy.String()),
		slog.Time("since", req.since),
	)

	report, err = o.pass(ctx, req, logger)
	if err != nil {
		logger.Warn("pass failed", slog.String("error", err.Error()))
		return nil, err
	}

	report.RunID = runID
	report.Duration = o.nowFunc().Sub(start)

	logger.Info("pass complete",
		slog.Int("folders", report.Folders),
		slog.Int("files", report.Files),
		slog.Int("failed", report.Failed),
		slog.Int("imported", report.Imported),
		slog.Duration("duration", report.Duration),
	)

	return report, nil
}

// pass discovers exports, reconciles them, and persists the result.
func (o *Orchestrator) pass(ctx context.Context, req passRequest, logger *slog.Logger) (*Report, error) {
	report := &Report{Kind: req.kind, Policy: req.policy}

	exports, err := o.collect(ctx, req, report, logger)
	if err != nil {
		return nil, err
	}

	if err := o.reloadLocal(ctx); err != nil {
		return nil, err
	}

	res := readlog.Reconcile(exports, o.Log(), req.policy)
	report.Imported = res.Imported
	report.Rejected = res.Rejected
	report.Touched = res.Touched

	if res.Imported > 0 {
		if err := o.persist(ctx, req.policy, res, logger); err != nil {
			return nil, err
		}
	}

	// An empty reload is a no-op, so it does not count as a sync.
	if req.kind == state.RunReload && res.Imported == 0 {
		return report, nil
	}

	report.LastSync = o.nowFunc()
	o.creds.SetLastSync(ctx, report.LastSync)
	o.hooks.OnStatusChanged()

	return report, nil
}

// reloadLocal replaces the in-memory log and recent books with the stored
// ones. Another process sharing the state DB may have saved since this
// orchestrator last read them. The caller holds passMu.
func (o *Orchestrator) reloadLocal(ctx context.Context) error {
	log, err := o.store.LoadLog(ctx)
	if err != nil {
		return fmt.Errorf("sync: loading reading log: %w", err)
	}

	recent := o.store.LoadRecentBooks(ctx)

	o.mu.Lock()
	o.log = log
	o.recent = recent
	o.mu.Unlock()

	return nil
}

// restingState is the state after a pass: Idle while sync is enabled,
// Disabled otherwise.
func (o *Orchestrator) restingState(ctx context.Context) State {
	if o.creds.Get(ctx).Configured() {
		return Idle
	}

	return Disabled
}

// collect walks the root folder's book folders and parses the newest
// statistics export of each. Failures inside one book folder are logged and
// skipped; failing to list the root aborts the pass.
func (o *Orchestrator) collect(
	ctx context.Context, req passRequest, report *Report, logger *slog.Logger,
) ([]readlog.FolderExport, error) {
	folders, err := o.remote.ListChildren(ctx, req.rootID, gdrive.Filter{
		MimeType: gdrive.MimeFolder,
		PageSize: o.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("sync: listing book folders: %w", err)
	}

	report.Folders = len(folders)

	var exports []readlog.FolderExport

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sync: pass canceled: %w", err)
		}

		sessions, found, err := o.readFolder(ctx, folder, req.since, logger)
		if err != nil {
			report.Failed++
			logger.Warn("skipping book folder",
				slog.String("folder", folder.Name),
				slog.String("error", err.Error()),
			)

			continue
		}

		if !found {
			continue
		}

		report.Files++
		exports = append(exports, readlog.FolderExport{Label: folder.Name, Sessions: sessions})
	}

	return exports, nil
}

// readFolder downloads and parses the newest statistics export in folder.
// found is false when the folder has no matching file.
func (o *Orchestrator) readFolder(
	ctx context.Context, folder gdrive.File, since time.Time, logger *slog.Logger,
) (sessions []readlog.RawSession, found bool, err error) {
	files, err := o.remote.ListChildren(ctx, folder.ID, gdrive.Filter{
		NameContains:        o.statisticsPattern,
		MimeType:            gdrive.MimeJSON,
		ModifiedAfter:       since,
		OrderByModifiedDesc: true,
		PageSize:            o.pageSize,
	})
	if err != nil {
		return nil, false, fmt.Errorf("listing statistics files: %w", err)
	}

	if len(files) == 0 {
		logger.Debug("no statistics file", slog.String("folder", folder.Name))
		return nil, false, nil
	}

	newest := files[0]

	content, err := o.remote.DownloadContent(ctx, newest.ID)
	if err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", newest.Name, err)
	}

	sessions, skipped, err := readlog.ParseExport([]byte(content))
	if err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", newest.Name, err)
	}

	if skipped > 0 {
		logger.Debug("skipped malformed sessions",
			slog.String("file", newest.Name),
			slog.Int("skipped", skipped),
		)
	}

	return sessions, true, nil
}

// persist saves the reconciled log and recent books, swaps them into memory,
// and notifies collaborators. A full reload keeps the first books it saw,
// in discovery order.
func (o *Orchestrator) persist(ctx context.Context, policy readlog.Policy, res readlog.Result, logger *slog.Logger) error {
	recent := readlog.UpdateRecentBooks(o.RecentBooks(), res.Touched)
	if policy == readlog.OverwriteAll {
		recent = readlog.LeadingBooks(res.Touched)
	}

	if err := o.store.SaveLog(ctx, res.Log, recent); err != nil {
		return fmt.Errorf("sync: saving reading log: %w", err)
	}

	o.mu.Lock()
	o.log = res.Log
	o.recent = recent
	o.mu.Unlock()

	o.hooks.OnLogChanged()

	if err := o.hooks.OnPersisted(ctx); err != nil {
		logger.Warn("post-persist hook failed", slog.String("error", err.Error()))
	}

	return nil
}
