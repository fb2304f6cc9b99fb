// Package auth gates every remote operation on a usable Google Drive access
// token. It reuses a stored token while it is fresh, renews it silently with
// the refresh token, and falls back to browser consent only when the caller
// explicitly allows it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/ttsu-sync/internal/state"
)

// SafetyMargin is how long before expiry a stored token stops being reused.
const SafetyMargin = 5 * time.Minute

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// ErrAuth is the sentinel behind every AuthError.
var ErrAuth = errors.New("auth: authorization unavailable")

// AuthError explains why no usable token could be obtained.
type AuthError struct {
	Op  string // "silent" or "interactive"
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s authorization failed", e.Op)
	}

	return fmt.Sprintf("auth: %s authorization failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAuth) true for every AuthError.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// Flow acquires tokens from the identity provider. Satisfied by *gdrive.OAuth.
type Flow interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Interactive(ctx context.Context) (*oauth2.Token, error)
}

// TokenStore persists the token half of the credential record. Satisfied by
// *state.CredentialStore.
type TokenStore interface {
	Get(ctx context.Context) state.Credentials
	SaveToken(ctx context.Context, access, refresh string, expiry time.Time)
	ClearToken(ctx context.Context)
	ClearRefreshToken(ctx context.Context)
}

// Notifier shows a non-blocking message to the user.
type Notifier func(ctx context.Context, msg string)

// Authenticator owns the in-memory session token.
type Authenticator struct {
	flow    Flow
	store   TokenStore
	notify  Notifier
	logger  *slog.Logger
	nowFunc func() time.Time

	mu      sync.RWMutex
	session string
}

// New creates an Authenticator. A nil notify only logs.
func New(flow Flow, store TokenStore, notify Notifier, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}

	if notify == nil {
		notify = func(_ context.Context, msg string) {
			logger.Warn(msg)
		}
	}

	return &Authenticator{
		flow:    flow,
		store:   store,
		notify:  notify,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// EnsureToken makes a usable access token available. It returns true with a
// nil error when one is ready; otherwise false with an *AuthError. Browser
// consent is attempted only when allowInteractive is true.
func (a *Authenticator) EnsureToken(ctx context.Context, allowInteractive bool) (bool, error) {
	creds := a.store.Get(ctx)
	now := a.nowFunc()

	if creds.AccessToken != "" && creds.Expiry.After(now.Add(SafetyMargin)) {
		a.setSession(creds.AccessToken)
		a.logger.Debug("reusing stored token", slog.Time("expiry", creds.Expiry))

		return true, nil
	}

	tok, err := a.flow.Refresh(ctx, creds.RefreshToken)
	if err == nil {
		a.accept(ctx, tok, creds.RefreshToken)
		return true, nil
	}

	a.logger.Info("silent token refresh failed", slog.String("error", err.Error()))

	previousRefresh := creds.RefreshToken

	var rejected *oauth2.RetrieveError
	if errors.As(err, &rejected) {
		a.store.ClearRefreshToken(ctx)
		previousRefresh = ""
	}

	if !allowInteractive {
		a.forget(ctx)
		return false, &AuthError{Op: "silent", Err: err}
	}

	tok, err = a.flow.Interactive(ctx)
	if err != nil {
		a.forget(ctx)
		a.notify(ctx, "Google Drive authorization failed: "+err.Error())

		return false, &AuthError{Op: "interactive", Err: err}
	}

	a.accept(ctx, tok, previousRefresh)

	return true, nil
}

// Token returns the current session token. It never triggers any flow; call
// EnsureToken first.
func (a *Authenticator) Token() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.session == "" {
		return "", &AuthError{Op: "session", Err: errors.New("no session token")}
	}

	return a.session, nil
}

func (a *Authenticator) accept(ctx context.Context, tok *oauth2.Token, previousRefresh string) {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = a.nowFunc().Add(defaultTokenLifetime)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	a.store.SaveToken(ctx, tok.AccessToken, refresh, expiry)
	a.setSession(tok.AccessToken)

	a.logger.Info("access token acquired", slog.Time("expiry", expiry))
}

func (a *Authenticator) forget(ctx context.Context) {
	a.setSession("")
	a.store.ClearToken(ctx)
}

func (a *Authenticator) setSession(token string) {
	a.mu.Lock()
	a.session = token
	a.mu.Unlock()
}
