package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

func newDisableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Forget Google Drive credentials and stop syncing",
		Long: `Clear the stored tokens, root folder, and last sync time. The local
reading log is kept. A running 'sync --watch' is told to stop.`,
		RunE: runDisable,
	}

	cmd.Flags().Bool("yes", false, "do not ask for confirmation")

	return cmd
}

func runDisable(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	yes, _ := cmd.Flags().GetBool("yes")

	a, err := openApp(cmd.Context(), cc, appOptions{assumeYes: yes})
	if err != nil {
		return err
	}
	defer a.Close()

	wasEnabled := a.store.Credentials().Get(cmd.Context()).SyncEnabled

	if err := a.orch.Disable(cmd.Context()); err != nil {
		if errors.Is(err, sync.ErrDeclined) {
			return errCanceledByUser
		}

		return err
	}

	if wasEnabled {
		notifyWatcher(cc, watchPIDPath(cc.Cfg))
	}

	return nil
}

// notifyWatcher sends SIGHUP to a running watch process so it notices the
// change right away. Non-fatal: without one, there is nothing to tell.
func notifyWatcher(cc *CLIContext, pidPath string) {
	if err := sendSIGHUP(pidPath); err != nil {
		cc.Logger.Debug("no watch process notified", "error", err)
		return
	}

	statusf(cc.Flags.Quiet, "Notified the running watch process.\n")
}
