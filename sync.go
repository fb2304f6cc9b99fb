package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new reading sessions now",
		Long: `Run one sync pass: read the newest statistics export of every book
folder changed since the last sync and merge new sessions into the log.

Sync never opens the browser. If authorization expired, run setup again.
With --watch, keep running and sync every poll_interval. Editing the config
file or sending SIGHUP reloads poll_interval and conflict_policy.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("watch", false, "keep running and sync periodically")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	watch, _ := cmd.Flags().GetBool("watch")

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	a, err := openApp(ctx, cc, appOptions{remote: true})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.orch.SyncNow(ctx)

	if !watch {
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(newReportOutput(report))
		}

		return nil
	}

	switch {
	case errors.Is(err, sync.ErrNotConfigured):
		return err
	case err != nil:
		cc.Logger.Warn("initial sync failed, continuing to watch", "error", err)
	}

	return runWatch(ctx, cc, a, a.orch.StartAutoSync(ctx))
}
