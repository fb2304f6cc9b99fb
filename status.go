package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ttsu-sync/internal/backup"
	"github.com/tonimelisma/ttsu-sync/internal/state"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync configuration and the last run",
		Long: `Display whether sync is enabled, when it last ran, and the outcome of
the most recent sync run. Reads local state only; never contacts Google Drive.`,
		RunE: runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	Summary      string     `json:"summary"`
	Enabled      bool       `json:"enabled"`
	RootFolderID string     `json:"root_folder_id,omitempty"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	PollInterval string     `json:"poll_interval"`
	Policy       string     `json:"conflict_policy"`
	Records      int        `json:"records"`
	RecentBooks  []string   `json:"recent_books"`
	ConfigPath   string     `json:"config_path"`
	StatePath    string     `json:"state_path"`
	BackupPath   string     `json:"backup_path,omitempty"`
	BackupAt     *time.Time `json:"backup_exported_at,omitempty"`
	WatchPID     int        `json:"watch_pid,omitempty"`
	LastRun      *runOutput `json:"last_run,omitempty"`
}

type runOutput struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Imported   int        `json:"imported"`
	Error      string     `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	a, err := openApp(ctx, cc, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := buildStatus(ctx, cc, a)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(out)
	}

	printStatusText(out)

	return nil
}

func buildStatus(ctx context.Context, cc *CLIContext, a *app) (*statusOutput, error) {
	creds := a.store.Credentials().Get(ctx)

	out := &statusOutput{
		Summary:      a.orch.Status(ctx),
		Enabled:      creds.Configured(),
		RootFolderID: creds.RootFolderID,
		PollInterval: a.orch.PollInterval().String(),
		Policy:       cc.Cfg.Policy().String(),
		Records:      len(a.orch.Log()),
		RecentBooks:  a.orch.RecentBooks(),
		ConfigPath:   cc.CfgPath,
		StatePath:    cc.Cfg.StateDBPath(),
	}

	if !creds.LastSync.IsZero() {
		t := creds.LastSync
		out.LastSync = &t
	}

	if pid, ok := watcherPID(watchPIDPath(cc.Cfg)); ok {
		out.WatchPID = pid
	}

	if a.backup != nil {
		out.BackupPath = a.backup.Path()

		doc, err := backup.Load(out.BackupPath)
		if err != nil {
			cc.Logger.Warn("could not read backup", "path", out.BackupPath, "error", err)
		} else if doc != nil {
			t := doc.ExportedAt
			out.BackupAt = &t
		}
	}

	run, err := a.store.LastRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sync history: %w", err)
	}

	if run != nil {
		out.LastRun = newRunOutput(run)
	}

	return out, nil
}

func newRunOutput(run *state.SyncRun) *runOutput {
	ro := &runOutput{
		ID:        run.ID,
		Kind:      string(run.Kind),
		StartedAt: run.StartedAt,
		Imported:  run.Imported,
		Error:     run.Err,
	}

	if !run.FinishedAt.IsZero() {
		t := run.FinishedAt
		ro.FinishedAt = &t
	}

	return ro
}

func printStatusText(out *statusOutput) {
	fmt.Printf("Status:     %s\n", out.Summary)

	if out.LastSync != nil {
		fmt.Printf("Last sync:  %s\n", formatTime(*out.LastSync))
	}

	fmt.Printf("Interval:   %s\n", out.PollInterval)
	fmt.Printf("Policy:     %s\n", out.Policy)
	fmt.Printf("Records:    %d\n", out.Records)

	if out.WatchPID != 0 {
		fmt.Printf("Watching:   PID %d\n", out.WatchPID)
	}

	if out.LastRun != nil {
		fmt.Printf("Last run:   %s\n", describeRun(out.LastRun))
	}

	if out.BackupPath != "" {
		fmt.Printf("Backup:     %s\n", describeBackup(out))
	}

	fmt.Printf("Config:     %s\n", out.ConfigPath)
	fmt.Printf("State:      %s\n", out.StatePath)
}

func describeRun(r *runOutput) string {
	switch {
	case r.FinishedAt == nil:
		return fmt.Sprintf("%s started %s, did not finish", r.Kind, formatTime(r.StartedAt))
	case r.Error != "":
		return fmt.Sprintf("%s at %s failed: %s", r.Kind, formatTime(*r.FinishedAt), r.Error)
	default:
		return fmt.Sprintf("%s at %s imported %d", r.Kind, formatTime(*r.FinishedAt), r.Imported)
	}
}

func describeBackup(out *statusOutput) string {
	if out.BackupAt == nil {
		return out.BackupPath + " (not written yet)"
	}

	return fmt.Sprintf("%s (exported %s)", out.BackupPath, formatTime(*out.BackupAt))
}
