package oura

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTokenFile(t *testing.T, path string, payload tokenPayload) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal token payload: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
}

func readTokenFile(t *testing.T, path string) tokenPayload {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode token file: %v", err)
	}
	return payload
}

func TestTokenFileName(t *testing.T) {
	if got := TokenFileName("oura_sleep"); got != "oura-token-cache-oura_sleep" {
		t.Errorf("TokenFileName = %q", got)
	}
}

func TestStaticTokenSource(t *testing.T) {
	src := StaticTokenSource("pat-token")
	tok, err := src.Token(context.Background())
	if err != nil || tok != "pat-token" {
		t.Errorf("Token = %q, %v", tok, err)
	}
	if _, err := src.Refresh(context.Background()); err == nil {
		t.Error("Refresh succeeded, want error for personal access token")
	}
}

func TestTokenFromCachedPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oura-token-cache-test")
	writeTokenFile(t, path, tokenPayload{AccessToken: "acc-1", RefreshToken: "ref-1"})

	store := NewTokenStore(path, "cid", "secret", "http://localhost/oura/oauth/setup")
	tok, err := store.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "acc-1" {
		t.Errorf("token = %q, want acc-1", tok)
	}
}

func TestTokenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oura-token-cache-test")
	store := NewTokenStore(path, "cid", "secret", "http://localhost/oura/oauth/setup")
	_, err := store.Token(context.Background())
	if err == nil {
		t.Fatal("Token succeeded with no cache file")
	}
	if !strings.Contains(err.Error(), "oauth/authorize") {
		t.Errorf("error should point at the authorize URL: %v", err)
	}
}

func TestTokenExchangesStoredCode(t *testing.T) {
	var gotGrant, gotCode, gotRedirect string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotGrant = r.PostForm.Get("grant_type")
		gotCode = r.PostForm.Get("code")
		gotRedirect = r.PostForm.Get("redirect_uri")
		fmt.Fprint(w, `{"access_token": "acc-new", "refresh_token": "ref-new"}`)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "oura-token-cache-test")
	writeTokenFile(t, path, tokenPayload{Code: "oauth-code-123"})

	store := NewTokenStore(path, "cid", "secret", "http://localhost/oura/oauth/setup")
	store.tokenEndpoint = srv.URL

	tok, err := store.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "acc-new" {
		t.Errorf("token = %q, want acc-new", tok)
	}
	if gotGrant != "authorization_code" || gotCode != "oauth-code-123" {
		t.Errorf("grant = %q code = %q", gotGrant, gotCode)
	}
	if gotRedirect != "http://localhost/oura/oauth/setup" {
		t.Errorf("redirect_uri = %q", gotRedirect)
	}

	saved := readTokenFile(t, path)
	if saved.AccessToken != "acc-new" || saved.RefreshToken != "ref-new" || saved.Code != "" {
		t.Errorf("cache file after exchange = %+v", saved)
	}
}

func TestRefreshKeepsOldRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "ref-old" {
			t.Errorf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		// Some token responses omit the refresh token.
		fmt.Fprint(w, `{"access_token": "acc-2"}`)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "oura-token-cache-test")
	writeTokenFile(t, path, tokenPayload{AccessToken: "acc-1", RefreshToken: "ref-old"})

	store := NewTokenStore(path, "cid", "secret", "http://localhost/oura/oauth/setup")
	store.tokenEndpoint = srv.URL

	tok, err := store.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok != "acc-2" {
		t.Errorf("token = %q, want acc-2", tok)
	}
	saved := readTokenFile(t, path)
	if saved.RefreshToken != "ref-old" {
		t.Errorf("refresh token = %q, want preserved ref-old", saved.RefreshToken)
	}
}

func TestStoreCodeResetsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oura-token-cache-test")
	writeTokenFile(t, path, tokenPayload{AccessToken: "acc-1", RefreshToken: "ref-1"})

	store := NewTokenStore(path, "cid", "secret", "http://localhost/oura/oauth/setup")
	if _, err := store.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}

	if err := store.StoreCode("fresh-code"); err != nil {
		t.Fatalf("StoreCode: %v", err)
	}
	saved := readTokenFile(t, path)
	if saved.Code != "fresh-code" || saved.AccessToken != "" {
		t.Errorf("cache file after StoreCode = %+v", saved)
	}
}

func TestAuthorizeURL(t *testing.T) {
	store := NewTokenStore("unused", "cid", "secret", "http://host/oura/oauth/setup")
	u := store.AuthorizeURL("oura_sleep")
	for _, want := range []string{
		"cloud.ouraring.com/oauth/authorize",
		"client_id=cid",
		"response_type=code",
		"state=oura_sleep",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("authorize URL %q missing %q", u, want)
		}
	}
}
