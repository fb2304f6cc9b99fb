package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/sync"
)

func newReloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Replace the whole reading log with the Drive exports",
		Long: `Re-read every statistics export on Google Drive and replace the local
reading log with the result. Asks twice before overwriting; --yes skips both
questions.

If no book folders or no sessions are found, the log is left untouched.`,
		RunE: runReload,
	}

	cmd.Flags().Bool("yes", false, "do not ask for confirmation")

	return cmd
}

func runReload(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	yes, _ := cmd.Flags().GetBool("yes")

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	a, err := openApp(ctx, cc, appOptions{remote: true, assumeYes: yes})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.orch.ReloadAll(ctx)
	if errors.Is(err, sync.ErrDeclined) {
		return errCanceledByUser
	}

	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(newReportOutput(report))
	}

	return nil
}
