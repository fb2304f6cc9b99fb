package sync

import (
	"context"
	"log/slog"
)

// Hooks are the collaborators the orchestrator calls out to. Any nil field
// is replaced by its named default in New.
type Hooks struct {
	// Confirm asks the user a yes/no question. false aborts the action.
	Confirm func(ctx context.Context, msg string) bool
	// Notify shows a non-blocking message.
	Notify func(ctx context.Context, msg string)
	// OnLogChanged runs after the in-memory log was replaced and persisted.
	OnLogChanged func()
	// OnPersisted runs after OnLogChanged, e.g. to export a backup. Its error
	// is logged, never returned to the caller of the pass.
	OnPersisted func(ctx context.Context) error
	// OnStatusChanged runs whenever the state or last sync time changes.
	OnStatusChanged func()
}

// DenyConfirm declines every question, so destructive actions never run
// without an explicit Confirm hook.
func DenyConfirm(context.Context, string) bool { return false }

// LogNotify returns a Notify that writes the message to logger.
func LogNotify(logger *slog.Logger) func(context.Context, string) {
	return func(_ context.Context, msg string) {
		logger.Info("notice", slog.String("message", msg))
	}
}

// NopLogChanged ignores log changes.
func NopLogChanged() {}

// NopPersisted ignores persistence.
func NopPersisted(context.Context) error { return nil }

// NopStatusChanged ignores status changes.
func NopStatusChanged() {}

func (h Hooks) withDefaults(logger *slog.Logger) Hooks {
	if h.Confirm == nil {
		h.Confirm = DenyConfirm
	}

	if h.Notify == nil {
		h.Notify = LogNotify(logger)
	}

	if h.OnLogChanged == nil {
		h.OnLogChanged = NopLogChanged
	}

	if h.OnPersisted == nil {
		h.OnPersisted = NopPersisted
	}

	if h.OnStatusChanged == nil {
		h.OnStatusChanged = NopStatusChanged
	}

	return h
}
