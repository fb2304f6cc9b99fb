package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// prompter implements the confirmation collaborator on a terminal.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	assumeYes   bool
	interactive bool
}

// newPrompter builds a prompter reading answers from in. Without a terminal
// on in, every question is declined unless assumeYes is set.
func newPrompter(in *os.File, out io.Writer, assumeYes bool) *prompter {
	return &prompter{
		in:          bufio.NewReader(in),
		out:         out,
		assumeYes:   assumeYes,
		interactive: isTerminal(in),
	}
}

// Confirm prints msg and waits for y/yes. Cancellation counts as no.
func (p *prompter) Confirm(ctx context.Context, msg string) bool {
	if p.assumeYes {
		return true
	}

	if !p.interactive {
		fmt.Fprintf(p.out, "%s\n(no terminal to confirm on, pass --yes to proceed)\n", msg)
		return false
	}

	fmt.Fprintf(p.out, "%s\n[y/N]: ", msg)

	answer := make(chan string, 1)

	go func() {
		line, _ := p.in.ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false
	case line := <-answer:
		return isYes(line)
	}
}

func isYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// stderrNotifier returns the notify collaborator. Notices are always shown,
// --quiet only silences logs.
func stderrNotifier(out io.Writer) func(context.Context, string) {
	return func(_ context.Context, msg string) {
		fmt.Fprintf(out, "%s\n", msg)
	}
}

// openBrowser opens url with the platform's default handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		return fmt.Errorf("opening a browser is not supported on %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	go cmd.Wait() //nolint:errcheck // reap the child, its exit status is irrelevant

	return nil
}
