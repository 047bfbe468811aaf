package oura

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lox/ouraview/internal/metrics"
)

// TokenFileName returns the token cache file name for a sensor name.
func TokenFileName(sensorName string) string {
	return fmt.Sprintf("oura-token-cache-%s", sensorName)
}

// fileLocks serializes cache file writes per path, so sensors sharing
// one account never interleave writes.
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	m, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// tokenPayload is the cache file format: either a pending OAuth code
// or an access/refresh token pair.
type tokenPayload struct {
	Code         string `json:"code,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// StaticTokenSource serves a personal access token. It never touches
// disk and cannot refresh.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

func (s StaticTokenSource) Refresh(ctx context.Context) (string, error) {
	return "", errors.New("oura: personal access token cannot be refreshed")
}

// TokenStore manages OAuth tokens backed by a JSON cache file. A file
// holding a callback code is exchanged for tokens on first use.
type TokenStore struct {
	path          string
	clientID      string
	clientSecret  string
	redirectURL   string
	client        *http.Client
	tokenEndpoint string

	mu      sync.Mutex
	access  string
	refresh string
}

func NewTokenStore(path, clientID, clientSecret, redirectURL string) *TokenStore {
	return &TokenStore{
		path:          path,
		clientID:      clientID,
		clientSecret:  clientSecret,
		redirectURL:   redirectURL,
		client:        &http.Client{Timeout: 30 * time.Second},
		tokenEndpoint: tokenURL,
	}
}

// Path returns the cache file location.
func (t *TokenStore) Path() string {
	return t.path
}

// HasCredentials reports whether a cache file exists yet.
func (t *TokenStore) HasCredentials() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

// AuthorizeURL builds the OAuth authorize URL a user must visit to
// start the flow. state routes the callback to the right sensor.
func (t *TokenStore) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", t.clientID)
	q.Set("duration", "temporary")
	q.Set("redirect_uri", t.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "email personal daily")
	q.Set("state", state)
	return authorizeURL + "?" + q.Encode()
}

// Token returns a usable access token, loading the cache file and
// exchanging a pending code when needed.
func (t *TokenStore) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.access != "" {
		return t.access, nil
	}
	return t.loadLocked(ctx)
}

// Refresh trades the refresh token for a new access token and persists
// the result.
func (t *TokenStore) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refresh == "" {
		if _, err := t.loadLocked(ctx); err != nil {
			metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
			return "", err
		}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", t.refresh)

	payload, err := t.requestToken(ctx, form)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if err := t.storeLocked(payload); err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.TokenRefreshesTotal.WithLabelValues("ok").Inc()
	return t.access, nil
}

// StoreCode persists a fresh OAuth callback code, discarding any
// previous tokens. The next Token call exchanges it.
func (t *TokenStore) StoreCode(code string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access = ""
	t.refresh = ""
	return t.writeFile(tokenPayload{Code: code})
}

func (t *TokenStore) loadLocked(ctx context.Context) (string, error) {
	lock := lockFor(t.path)
	lock.Lock()
	raw, err := os.ReadFile(t.path)
	lock.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no token cache at %s, authorize at %s", t.path, t.AuthorizeURL(""))
		}
		return "", fmt.Errorf("read token cache: %w", err)
	}

	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode token cache %s: %w", t.path, err)
	}

	if payload.Code != "" {
		return t.exchangeLocked(ctx, payload.Code)
	}
	if payload.AccessToken != "" && payload.RefreshToken != "" {
		t.access = payload.AccessToken
		t.refresh = payload.RefreshToken
		return t.access, nil
	}
	return "", fmt.Errorf("token cache %s holds neither code nor tokens", t.path)
}

func (t *TokenStore) exchangeLocked(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", t.redirectURL)

	payload, err := t.requestToken(ctx, form)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if err := t.storeLocked(payload); err != nil {
		return "", err
	}
	return t.access, nil
}

// storeLocked validates and persists token data. A response without a
// refresh token keeps the previous one.
func (t *TokenStore) storeLocked(payload tokenPayload) error {
	if payload.AccessToken == "" {
		return errors.New("oura: token response carried no access token")
	}
	if payload.RefreshToken == "" {
		if t.refresh == "" {
			return errors.New("oura: no refresh token available, re-authorization required")
		}
		payload.RefreshToken = t.refresh
	}
	t.access = payload.AccessToken
	t.refresh = payload.RefreshToken
	return t.writeFile(payload)
}

func (t *TokenStore) writeFile(payload tokenPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}
	lock := lockFor(t.path)
	lock.Lock()
	defer lock.Unlock()
	if err := os.WriteFile(t.path, raw, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

func (t *TokenStore) requestToken(ctx context.Context, form url.Values) (tokenPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenPayload{}, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(t.clientID, t.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return tokenPayload{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	var payload tokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return tokenPayload{}, fmt.Errorf("decode token response: %w", err)
	}
	return payload, nil
}
