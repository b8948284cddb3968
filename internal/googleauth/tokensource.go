// Package googleauth yields valid OAuth bearer tokens for the Sheets
// backend, refreshing and persisting them through an on-disk token cache.
//
// The interactive consent flow that mints the first refresh token is out of
// scope: the token cache file is provisioned once, and this package keeps
// it fresh from then on.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNoRefreshToken means the token cache has no refresh token to renew an
// expired access token with; the cache must be re-provisioned.
var ErrNoRefreshToken = errors.New("token cache has no refresh token")

// expirySkew renews tokens slightly before their deadline so a token never
// expires mid-request.
const expirySkew = 30 * time.Second

// Token is the persisted shape of the token cache file.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

func (t Token) valid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(expirySkew).Before(t.Expiry)
}

// Options configures a TokenSource. Tests point TokenURL at an httptest
// server.
type Options struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
	TokenURL     string
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// TokenSource serves bearer tokens from the cache file, refreshing through
// the OAuth token endpoint when the cached token is expired or near expiry.
// Renewed tokens are written back to the cache file. Safe for concurrent
// use.
type TokenSource struct {
	clientID     string
	clientSecret string
	tokenFile    string
	tokenURL     string
	httpClient   *http.Client
	log          *slog.Logger
	now          func() time.Time

	mu     sync.Mutex
	cached Token
}

// NewTokenSource builds a token source over the given cache file.
func NewTokenSource(opts Options) *TokenSource {
	tokenURL := strings.TrimSpace(opts.TokenURL)
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenSource{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		tokenFile:    opts.TokenFile,
		tokenURL:     tokenURL,
		httpClient:   httpClient,
		log:          log.With("component", "googleauth"),
		now:          now,
	}
}

// Token returns a valid access token, refreshing and persisting it first if
// needed. The signature matches store.TokenProvider, so a method value
// plugs straight into the Sheets backend.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached.valid(now) {
		return s.cached.AccessToken, nil
	}

	token, err := s.readCache()
	if err != nil {
		return "", err
	}
	if token.valid(now) {
		s.cached = token
		return token.AccessToken, nil
	}

	if token.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRefreshToken, s.tokenFile)
	}
	s.log.Debug("access token expired, refreshing")
	refreshed, err := s.refresh(ctx, token)
	if err != nil {
		return "", err
	}
	if err := s.writeCache(refreshed); err != nil {
		// The token is still usable this run; losing the cache write only
		// costs a refresh on the next start.
		s.log.Warn("failed to persist refreshed token", "path", s.tokenFile, "error", err)
	}
	s.cached = refreshed
	return refreshed.AccessToken, nil
}

func (s *TokenSource) readCache() (Token, error) {
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return Token{}, fmt.Errorf("read token cache: %w", err)
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("parse token cache %s: %w", s.tokenFile, err)
	}
	return token, nil
}

func (s *TokenSource) writeCache(token Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.tokenFile, data, 0o600)
}

func (s *TokenSource) refresh(ctx context.Context, token Token) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("refresh_token", token.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, err
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return Token{}, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, fmt.Errorf("token refresh failed: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Token{}, err
	}
	refreshed := Token{
		AccessToken:  out.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       s.now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	// Some providers rotate the refresh token on use.
	if out.RefreshToken != "" {
		refreshed.RefreshToken = out.RefreshToken
	}
	return refreshed, nil
}
