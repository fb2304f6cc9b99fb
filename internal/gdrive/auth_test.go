package gdrive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newTokenServer serves a token endpoint that checks the grant and returns
// a fixed access token.
func newTokenServer(t *testing.T, wantGrant string, checks func(url.Values)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, wantGrant, r.PostForm.Get("grant_type"))

		if checks != nil {
			checks(r.PostForm)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600,"refresh_token":"fresh-refresh"}`)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestOAuth(tokenURL string, openURL func(string) error) *OAuth {
	o := NewOAuth("client-id", "client-secret", nil, openURL, nil)
	o.cfg.Endpoint = oauth2.Endpoint{
		AuthURL:   "https://accounts.example.com/auth",
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}

	return o
}

func TestRefresh_Success(t *testing.T) {
	srv := newTokenServer(t, "refresh_token", func(form url.Values) {
		assert.Equal(t, "stored-refresh", form.Get("refresh_token"))
		assert.Equal(t, "client-id", form.Get("client_id"))
	})

	tok, err := newTestOAuth(srv.URL, nil).Refresh(context.Background(), "stored-refresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "fresh-refresh", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	_, err := newTestOAuth("http://127.0.0.1:1", nil).Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefresh_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	_, err := newTestOAuth(srv.URL, nil).Refresh(context.Background(), "revoked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refreshing token")
}

// browserFollowing simulates a user who consents immediately: it follows the
// consent URL's redirect_uri with the given query.
func browserFollowing(t *testing.T, query func(state string) url.Values) func(string) error {
	t.Helper()

	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}

		params := u.Query()
		assert.Equal(t, ReadonlyScope, params.Get("scope"))
		assert.Equal(t, "offline", params.Get("access_type"))
		assert.Equal(t, "consent", params.Get("prompt"))
		assert.Equal(t, "S256", params.Get("code_challenge_method"))

		resp, err := http.Get(params.Get("redirect_uri") + "/?" + query(params.Get("state")).Encode())
		if err != nil {
			return err
		}

		return resp.Body.Close()
	}
}

func TestInteractive_Success(t *testing.T) {
	srv := newTokenServer(t, "authorization_code", func(form url.Values) {
		assert.Equal(t, "the-code", form.Get("code"))
		assert.NotEmpty(t, form.Get("code_verifier"))
	})

	open := browserFollowing(t, func(state string) url.Values {
		return url.Values{"code": {"the-code"}, "state": {state}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tok, err := newTestOAuth(srv.URL, open).Interactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "fresh-refresh", tok.RefreshToken)
}

func TestInteractive_StateMismatch(t *testing.T) {
	open := browserFollowing(t, func(string) url.Values {
		return url.Values{"code": {"the-code"}, "state": {"forged"}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := newTestOAuth("http://127.0.0.1:1", open).Interactive(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestInteractive_UserDenied(t *testing.T) {
	open := browserFollowing(t, func(state string) url.Values {
		return url.Values{"error": {"access_denied"}, "state": {state}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := newTestOAuth("http://127.0.0.1:1", open).Interactive(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestInteractive_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	open := func(string) error {
		cancel()
		return nil
	}

	_, err := newTestOAuth("http://127.0.0.1:1", open).Interactive(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInteractive_BrowserFailureStillWaits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	open := func(string) error { return fmt.Errorf("no display") }

	_, err := newTestOAuth("http://127.0.0.1:1", open).Interactive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateState(t *testing.T) {
	a, err := generateState()
	require.NoError(t, err)

	b, err := generateState()
	require.NoError(t, err)

	assert.Len(t, a, stateTokenBytes*2)
	assert.NotEqual(t, a, b)
}
