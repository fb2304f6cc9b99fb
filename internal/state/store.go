// Package state persists everything ttsu-sync remembers between runs in a
// single SQLite database: the string-keyed durable values (credentials,
// folder ID, sync flags, the reading log and recent books) and a history of
// sync runs.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Durable keys. Values are scalars or JSON text.
const (
	KeyRootFolderID = "root-folder-id"
	KeySyncEnabled  = "sync-enabled"
	KeyAccessToken  = "access-token" //nolint:gosec // G101: key name, not a credential
	KeyRefreshToken = "refresh-token" //nolint:gosec // G101: key name, not a credential
	KeyTokenExpiry  = "token-expiry"
	KeyLastSync     = "last-sync-time"
	KeyReadingLog   = "reading-log"
	KeyRecentBooks  = "recent-books"
)

// dbDirPerms is used when creating the directory holding the database.
const dbDirPerms = 0o700

const (
	sqlGetValue    = `SELECT value FROM kv WHERE key = ?`
	sqlDeleteValue = `DELETE FROM kv WHERE key = ?`
	sqlUpsertValue = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = excluded.updated_at`
)

// Store is the sole owner of the state database.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the SQLite database at dbPath and applies
// migrations. The database uses WAL mode with synchronous=FULL.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirPerms); err != nil {
		return nil, fmt.Errorf("state: creating directory for %s: %w", dbPath, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("state store opened", slog.String("db_path", dbPath))

	return &Store{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, sqlGetValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("state: reading %s: %w", key, err)
	}

	return value, true, nil
}

// GetMany returns the values of every present key among keys.
func (s *Store) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))

	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM kv WHERE key IN ("+placeholders+")", args...) //nolint:gosec // placeholders only
	if err != nil {
		return nil, fmt.Errorf("state: reading keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("state: scanning key row: %w", err)
		}

		out[k] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: iterating key rows: %w", err)
	}

	return out, nil
}

// Apply writes set and removes del in a single transaction.
func (s *Store) Apply(ctx context.Context, set map[string]string, del []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.nowFunc().UnixNano()

	for k, v := range set {
		if _, err := tx.ExecContext(ctx, sqlUpsertValue, k, v, now); err != nil {
			return fmt.Errorf("state: writing %s: %w", k, err)
		}
	}

	for _, k := range del {
		if _, err := tx.ExecContext(ctx, sqlDeleteValue, k); err != nil {
			return fmt.Errorf("state: deleting %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: committing: %w", err)
	}

	return nil
}
