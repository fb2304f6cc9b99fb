// Package sync drives the one-way import of ttsu reading statistics: it
// gates each pass on authorization, discovers per-book exports on the remote
// drive, reconciles them into the local reading log, and persists the result.
// A single Orchestrator owns the session, the in-memory log, and the
// auto-sync timer.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tonimelisma/ttsu-sync/internal/gdrive"
	"github.com/tonimelisma/ttsu-sync/internal/readlog"
	"github.com/tonimelisma/ttsu-sync/internal/state"
)

// DefaultPollInterval is the auto-sync period when none is configured.
const DefaultPollInterval = 5 * time.Minute

// DefaultRootFolderName is the remote folder ttsu exports into.
const DefaultRootFolderName = "ttsu"

// DefaultStatisticsPattern selects statistics exports inside a book folder.
const DefaultStatisticsPattern = "statistics"

// Sentinel errors returned by orchestrator operations.
var (
	ErrNotConfigured      = errors.New("sync: not configured, run setup first")
	ErrSyncInProgress     = errors.New("sync: a sync pass is already running")
	ErrRootFolderNotFound = errors.New("sync: ttsu folder not found on the remote drive")
	ErrDeclined           = errors.New("sync: action declined")
)

// State is the orchestrator's lifecycle state.
type State int

// Orchestrator states.
const (
	Disabled State = iota
	Configuring
	Idle
	Syncing
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Configuring:
		return "configuring"
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// RemoteReader is the read-only view of the remote drive. Satisfied by
// *gdrive.Client.
type RemoteReader interface {
	FindRootFolder(ctx context.Context, name string) (string, error)
	ListChildren(ctx context.Context, folderID string, f gdrive.Filter) ([]gdrive.File, error)
	DownloadContent(ctx context.Context, fileID string) (string, error)
}

// Authenticator gates remote access. Satisfied by *auth.Authenticator.
type Authenticator interface {
	EnsureToken(ctx context.Context, allowInteractive bool) (bool, error)
}

// Store persists the reading log and run history. Satisfied by *state.Store.
type Store interface {
	LoadLog(ctx context.Context) ([]readlog.Record, error)
	LoadRecentBooks(ctx context.Context) []string
	SaveLog(ctx context.Context, log []readlog.Record, recent []string) error
	BeginRun(ctx context.Context, kind state.RunKind) (*state.SyncRun, error)
	FinishRun(ctx context.Context, run *state.SyncRun, imported int, runErr error) error
}

// CredentialStore holds sync enablement and the root folder. Satisfied by
// *state.CredentialStore.
type CredentialStore interface {
	Get(ctx context.Context) state.Credentials
	Clear(ctx context.Context)
	Enable(ctx context.Context, folderID string)
	SetRootFolder(ctx context.Context, folderID string)
	SetLastSync(ctx context.Context, t time.Time)
}

// Config holds everything New needs. Remote, Auth, Store and Credentials
// are required; zero values elsewhere take defaults.
type Config struct {
	Remote      RemoteReader
	Auth        Authenticator
	Store       Store
	Credentials CredentialStore
	Hooks       Hooks

	RootFolderName    string
	StatisticsPattern string
	PageSize          int
	Policy            readlog.Policy // for manual and automatic passes; reload always overwrites
	PollInterval      time.Duration

	Logger *slog.Logger
}

// Report summarizes one completed pass.
type Report struct {
	RunID    string
	Kind     state.RunKind
	Policy   readlog.Policy
	Folders  int      // book folders found under the root
	Files    int      // statistics files read
	Failed   int      // folders skipped after a list, download, or parse error
	Imported int      // sessions accepted into the log
	Rejected int      // sessions dropped as invalid or empty
	Touched  []string // distinct titles of accepted sessions
	LastSync time.Time
	Duration time.Duration
}
