package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/tonimelisma/ttsu-sync/internal/state"
)

// AutoSync is a running auto-sync timer. Stop cancels it; the zero value is
// not usable.
type AutoSync struct {
	cancel   context.CancelFunc
	done     chan struct{}
	interval chan time.Duration
	stopOnce gosync.Once
}

// Stop cancels the timer and waits for an in-flight tick to finish. It is
// safe to call more than once.
func (a *AutoSync) Stop() {
	a.stopOnce.Do(a.cancel)
	<-a.done
}

// Done is closed once the timer goroutine exits, either after Stop or when
// the context passed to StartAutoSync is canceled.
func (a *AutoSync) Done() <-chan struct{} {
	return a.done
}

func newAutoSync(cancel context.CancelFunc) *AutoSync {
	return &AutoSync{
		cancel:   cancel,
		done:     make(chan struct{}),
		interval: make(chan time.Duration, 1),
	}
}

// setInterval queues d for the timer loop without waiting for a running
// tick. A newer interval replaces one not yet picked up.
func (a *AutoSync) setInterval(d time.Duration) {
	for {
		select {
		case a.interval <- d:
			return
		default:
		}

		select {
		case <-a.interval:
		default:
		}
	}
}

// StartAutoSync arms the periodic timer and returns its handle. A previous
// timer owned by this orchestrator is stopped first. Ticks never prompt for
// authorization and only log failures.
func (o *Orchestrator) StartAutoSync(ctx context.Context) *AutoSync {
	o.stopAutoSync()

	loopCtx, cancel := context.WithCancel(ctx)
	a := newAutoSync(cancel)

	interval := o.PollInterval()

	o.mu.Lock()
	o.auto = a
	o.mu.Unlock()

	go o.autoLoop(loopCtx, a, interval)

	o.logger.Info("auto-sync armed", slog.Duration("interval", interval))

	return a
}

func (o *Orchestrator) stopAutoSync() {
	o.mu.Lock()
	a := o.auto
	o.auto = nil
	o.mu.Unlock()

	if a != nil {
		a.Stop()
	}
}

func (o *Orchestrator) autoLoop(ctx context.Context, a *AutoSync, interval time.Duration) {
	defer close(a.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Debug("auto-sync stopped")
			return
		case d := <-a.interval:
			ticker.Reset(d)
			o.logger.Info("auto-sync interval changed", slog.Duration("interval", d))
		case <-ticker.C:
			o.autoTick(ctx)
		}
	}
}

// autoTick runs one background pass. Enablement is re-read from the store
// each time, so a disable from another process stops imports.
func (o *Orchestrator) autoTick(ctx context.Context) {
	creds := o.creds.Get(ctx)
	if !creds.Configured() {
		o.logger.Debug("auto-sync tick skipped, sync not enabled")
		o.setState(Disabled)

		return
	}

	if !o.passMu.TryLock() {
		o.logger.Info("auto-sync tick dropped, a pass is already running")
		return
	}
	defer o.passMu.Unlock()

	if ok, err := o.auth.EnsureToken(ctx, false); !ok {
		o.logger.Warn("auto-sync tick skipped, authorization unavailable",
			slog.String("error", gateError(err).Error()),
		)

		return
	}

	if _, err := o.runPass(ctx, passRequest{
		kind:   state.RunAuto,
		rootID: creds.RootFolderID,
		policy: o.currentPolicy(),
		since:  creds.LastSync,
	}); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("auto-sync pass failed", slog.String("error", err.Error()))
	}
}
