package googleauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeTokenFile(t *testing.T, token Token) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	data, err := json.Marshal(token)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestToken_ValidCacheIsServedWithoutRefresh(t *testing.T) {
	path := writeTokenFile(t, Token{
		AccessToken:  "cached-token",
		RefreshToken: "refresh-1",
		Expiry:       testNow.Add(time.Hour),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("refresh called for a valid cached token")
	}))
	defer srv.Close()

	source := NewTokenSource(Options{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenFile:    path,
		TokenURL:     srv.URL,
		Now:          func() time.Time { return testNow },
	})

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)

	// Second call hits the in-memory copy; no file re-read needed.
	require.NoError(t, os.Remove(path))
	token, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
}

func TestToken_RefreshesExpiredToken(t *testing.T) {
	path := writeTokenFile(t, Token{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		Expiry:       testNow.Add(-time.Hour),
	})

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"refresh_token": r.PostForm.Get("refresh_token"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	source := NewTokenSource(Options{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenFile:    path,
		TokenURL:     srv.URL,
		Now:          func() time.Time { return testNow },
	})

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "cid", gotForm["client_id"])
	assert.Equal(t, "secret", gotForm["client_secret"])
	assert.Equal(t, "refresh-1", gotForm["refresh_token"])

	// The renewed token is written back to the cache file.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted Token
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "fresh-token", persisted.AccessToken)
	assert.Equal(t, "refresh-1", persisted.RefreshToken, "refresh token carried over")
	assert.True(t, persisted.Expiry.Equal(testNow.Add(time.Hour)), "expiry = %v", persisted.Expiry)
}

func TestToken_RotatedRefreshTokenIsPersisted(t *testing.T) {
	path := writeTokenFile(t, Token{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		Expiry:       testNow.Add(-time.Hour),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"expires_in":    3600,
			"refresh_token": "refresh-2",
		})
	}))
	defer srv.Close()

	source := NewTokenSource(Options{
		TokenFile: path,
		TokenURL:  srv.URL,
		Now:       func() time.Time { return testNow },
	})

	_, err := source.Token(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted Token
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "refresh-2", persisted.RefreshToken)
}

func TestToken_NearExpiryCountsAsExpired(t *testing.T) {
	path := writeTokenFile(t, Token{
		AccessToken:  "nearly-stale",
		RefreshToken: "refresh-1",
		Expiry:       testNow.Add(10 * time.Second),
	})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	source := NewTokenSource(Options{
		TokenFile: path,
		TokenURL:  srv.URL,
		Now:       func() time.Time { return testNow },
	})

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, int32(1), calls.Load())
}

func TestToken_NoRefreshToken(t *testing.T) {
	path := writeTokenFile(t, Token{
		AccessToken: "stale-token",
		Expiry:      testNow.Add(-time.Hour),
	})

	source := NewTokenSource(Options{
		TokenFile: path,
		Now:       func() time.Time { return testNow },
	})

	_, err := source.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestToken_MissingCacheFile(t *testing.T) {
	source := NewTokenSource(Options{
		TokenFile: filepath.Join(t.TempDir(), "absent.json"),
		Now:       func() time.Time { return testNow },
	})

	_, err := source.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestToken_RefreshFailureSurfaces(t *testing.T) {
	path := writeTokenFile(t, Token{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		Expiry:       testNow.Add(-time.Hour),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	source := NewTokenSource(Options{
		TokenFile: path,
		TokenURL:  srv.URL,
		Now:       func() time.Time { return testNow },
	})

	_, err := source.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
}
