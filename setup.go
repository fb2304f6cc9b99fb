package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/config"
)

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize Google Drive and enable sync",
		Long: `Authorize read-only access to Google Drive in the browser, locate the
export folder, import everything found there, and enable sync.

With --watch the command keeps running and syncs every poll_interval.
Without it, run 'ttsu-sync sync --watch' later to keep syncing.`,
		RunE: runSetup,
	}

	cmd.Flags().Bool("watch", false, "keep running and sync periodically")

	return cmd
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	watch, _ := cmd.Flags().GetBool("watch")

	if err := ensureOAuthClient(cc); err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	a, err := openApp(ctx, cc, appOptions{remote: true})
	if err != nil {
		return err
	}
	defer a.Close()

	handle, err := a.orch.Setup(ctx)
	if handle == nil {
		return err
	}

	if watch {
		if err != nil {
			cc.Logger.Warn("first sync failed, continuing to watch", "error", err)
		}

		return runWatch(ctx, cc, a, handle)
	}

	handle.Stop()

	if err != nil {
		return err
	}

	statusf(cc.Flags.Quiet, "Run 'ttsu-sync sync --watch' to keep syncing in the background.\n")

	return nil
}

// ensureOAuthClient writes a config template on first run when no OAuth
// client is configured, so the user has a file to fill in.
func ensureOAuthClient(cc *CLIContext) error {
	err := config.ValidateAuth(cc.Cfg)
	if err == nil {
		return nil
	}

	if _, statErr := os.Stat(cc.CfgPath); errors.Is(statErr, os.ErrNotExist) {
		if writeErr := config.WriteTemplate(cc.CfgPath); writeErr != nil {
			cc.Logger.Warn("could not write config template", "path", cc.CfgPath, "error", writeErr)
		} else {
			return fmt.Errorf("%w (a config template was written to %s)", err, cc.CfgPath)
		}
	}

	return err
}
