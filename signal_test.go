package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

func TestShutdownContext_FirstSignalCancels(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := shutdownContext(parent, logger)

	// Send SIGINT to ourselves.
	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("failed to send SIGINT: %v", err)
	}

	select {
	case <-ctx.Done():
		// Expected: context canceled on first signal.
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled within 2 seconds of SIGINT")
	}

	// Clean up: cancel parent to stop the goroutine.
	cancel()
}

func TestShutdownContext_ParentCancelStopsGoroutine(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := shutdownContext(parent, logger)

	// Canceling the parent cancels the derived context.
	cancel()

	select {
	case <-ctx.Done():
		// Expected: context canceled when parent is canceled.
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled within 2 seconds of parent cancel")
	}
}

func TestReloadSignals_ForwardsSIGHUP(t *testing.T) {
	// Keep SIGHUP trapped for the whole test so a signal sent before
	// reloadSignals registers cannot kill the process.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGHUP)
	defer signal.Stop(guard)

	ctx, cancel := context.WithCancel(context.Background())
	reasons := make(chan string, 1)
	done := make(chan error, 1)

	go func() { done <- reloadSignals(ctx, reasons) }()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(2 * time.Second)

	for received := false; !received; {
		select {
		case <-ticker.C:
			if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
				t.Fatalf("failed to send SIGHUP: %v", err)
			}
		case reason := <-reasons:
			if reason != "SIGHUP" {
				t.Fatalf("reason = %q, want SIGHUP", reason)
			}

			received = true
		case <-deadline:
			t.Fatal("no reload requested within 2 seconds of SIGHUP")
		}
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("reloadSignals returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reloadSignals did not return after cancel")
	}
}

func TestRequestReload_DoesNotBlock(t *testing.T) {
	t.Parallel()

	reasons := make(chan string, 1)

	requestReload(reasons, "first")
	requestReload(reasons, "second")

	if got := <-reasons; got != "first" {
		t.Fatalf("got %q, want first", got)
	}

	select {
	case extra := <-reasons:
		t.Fatalf("unexpected queued reason %q", extra)
	default:
	}
}
