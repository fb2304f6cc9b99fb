package state

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// isoMillis matches JavaScript's Date.toISOString, which earlier versions of
// the importer wrote to last-sync-time.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// credentialKeys are every key owned by the credential record.
var credentialKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyTokenExpiry,
	KeySyncEnabled,
	KeyRootFolderID,
	KeyLastSync,
}

// tokenKeys are the keys cleared when authorization fails.
var tokenKeys = []string{KeyAccessToken, KeyTokenExpiry}

// Credentials gate access to the remote drive and record sync enablement.
// Zero values mean absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	SyncEnabled  bool
	RootFolderID string
	LastSync     time.Time
}

// Configured reports whether setup completed: sync is enabled and a root
// folder is known.
func (c Credentials) Configured() bool {
	return c.SyncEnabled && c.RootFolderID != ""
}

// CredentialStore reads and writes the credential record. None of its
// methods fail: unreadable or corrupt values degrade to absent and write
// failures are logged.
type CredentialStore struct {
	store  *Store
	logger *slog.Logger
}

// Credentials returns the credential view over s.
func (s *Store) Credentials() *CredentialStore {
	return &CredentialStore{store: s, logger: s.logger}
}

// Get loads the credential record.
func (c *CredentialStore) Get(ctx context.Context) Credentials {
	vals, err := c.store.GetMany(ctx, credentialKeys...)
	if err != nil {
		c.logger.Warn("reading credentials failed, treating as absent",
			slog.String("error", err.Error()),
		)

		return Credentials{}
	}

	creds := Credentials{
		AccessToken:  vals[KeyAccessToken],
		RefreshToken: vals[KeyRefreshToken],
		SyncEnabled:  vals[KeySyncEnabled] == "true",
		RootFolderID: vals[KeyRootFolderID],
	}

	if raw, ok := vals[KeyTokenExpiry]; ok {
		ms, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			c.logger.Warn("corrupt token expiry, treating token as absent",
				slog.String("raw", raw),
			)

			creds.AccessToken = ""
		} else {
			creds.Expiry = time.UnixMilli(ms)
		}
	} else {
		// A token with no expiry cannot be trusted.
		creds.AccessToken = ""
	}

	if raw, ok := vals[KeyLastSync]; ok {
		t, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			c.logger.Warn("corrupt last sync time, ignoring", slog.String("raw", raw))
		} else {
			creds.LastSync = t
		}
	}

	return creds
}

// Put replaces the whole credential record. Empty fields are removed.
func (c *CredentialStore) Put(ctx context.Context, creds Credentials) {
	set := make(map[string]string)
	var del []string

	put := func(key, value string) {
		if value == "" {
			del = append(del, key)
			return
		}

		set[key] = value
	}

	put(KeyAccessToken, creds.AccessToken)
	put(KeyRefreshToken, creds.RefreshToken)
	put(KeyRootFolderID, creds.RootFolderID)

	if creds.Expiry.IsZero() {
		put(KeyTokenExpiry, "")
	} else {
		put(KeyTokenExpiry, strconv.FormatInt(creds.Expiry.UnixMilli(), 10))
	}

	if creds.SyncEnabled {
		put(KeySyncEnabled, "true")
	} else {
		put(KeySyncEnabled, "")
	}

	if creds.LastSync.IsZero() {
		put(KeyLastSync, "")
	} else {
		put(KeyLastSync, formatISO(creds.LastSync))
	}

	c.apply(ctx, "put credentials", set, del)
}

// Clear removes the whole credential record.
func (c *CredentialStore) Clear(ctx context.Context) {
	c.apply(ctx, "clear credentials", nil, credentialKeys)
}

// SaveToken records a freshly acquired token. An empty refresh token keeps
// the stored one, since Google only returns it on first consent.
func (c *CredentialStore) SaveToken(ctx context.Context, access, refresh string, expiry time.Time) {
	set := map[string]string{
		KeyAccessToken: access,
		KeyTokenExpiry: strconv.FormatInt(expiry.UnixMilli(), 10),
	}

	if refresh != "" {
		set[KeyRefreshToken] = refresh
	}

	c.apply(ctx, "save token", set, nil)
}

// ClearToken forgets the access token and expiry but keeps the refresh
// token and sync configuration.
func (c *CredentialStore) ClearToken(ctx context.Context) {
	c.apply(ctx, "clear token", nil, tokenKeys)
}

// ClearRefreshToken forgets a refresh token the provider has rejected.
func (c *CredentialStore) ClearRefreshToken(ctx context.Context) {
	c.apply(ctx, "clear refresh token", nil, []string{KeyRefreshToken})
}

// Enable records the root folder and turns sync on.
func (c *CredentialStore) Enable(ctx context.Context, folderID string) {
	c.apply(ctx, "enable sync", map[string]string{
		KeyRootFolderID: folderID,
		KeySyncEnabled:  "true",
	}, nil)
}

// SetRootFolder records the root folder without changing enablement.
func (c *CredentialStore) SetRootFolder(ctx context.Context, folderID string) {
	c.apply(ctx, "set root folder", map[string]string{KeyRootFolderID: folderID}, nil)
}

// SetLastSync records when a sync pass last completed.
func (c *CredentialStore) SetLastSync(ctx context.Context, t time.Time) {
	c.apply(ctx, "set last sync", map[string]string{KeyLastSync: formatISO(t)}, nil)
}

func (c *CredentialStore) apply(ctx context.Context, op string, set map[string]string, del []string) {
	if err := c.store.Apply(ctx, set, del); err != nil {
		c.logger.Warn("credential store write failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
