package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lox/ouraview/internal/oura"
	"github.com/lox/ouraview/internal/reconcile"
	"github.com/lox/ouraview/internal/sensor"
)

type stubFetcher struct {
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, ep oura.Endpoint, startDate, endDate string) (map[string]any, error) {
	f.calls++
	return map[string]any{"data": []any{
		map[string]any{"day": "2023-11-14", "score": float64(77)},
	}}, nil
}

func setupTestServer(t *testing.T) (*Server, *stubFetcher, *oura.TokenStore) {
	t.Helper()
	fetcher := &stubFetcher{}
	def := oura.Definitions()["sleep_score"]
	cfg := reconcile.Config{
		Name:               "oura_sleep_score",
		MonitoredDates:     []string{"yesterday"},
		MonitoredVariables: []string{"day", "score"},
		StateAttribute:     "score",
	}
	sn := sensor.New(def, cfg, fetcher)
	sched := sensor.NewScheduler([]*sensor.Sensor{sn}, time.Minute)

	tokenPath := filepath.Join(t.TempDir(), "oura-token-cache-oura_sleep_score")
	store := oura.NewTokenStore(tokenPath, "cid", "secret", "http://localhost:8080/oura/oauth/setup")
	tokens := map[string]*oura.TokenStore{"oura_sleep_score": store}

	return NewServer(sched, tokens, "8080"), fetcher, store
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["sensors"] != float64(1) {
		t.Errorf("health = %v", body)
	}
}

func TestHandleSensors(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	srv.scheduler.UpdateOnce(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/api/sensors", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var entities []Entity
	if err := json.Unmarshal(rec.Body.Bytes(), &entities); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
	e := entities[0]
	if e.EntityID != "sensor.oura_sleep_score" {
		t.Errorf("entity_id = %q", e.EntityID)
	}
	if e.State != float64(77) {
		t.Errorf("state = %v, want 77", e.State)
	}
	if e.LastUpdated == "" {
		t.Error("last_updated empty after update")
	}
}

func TestHandleSensorByName(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/oura_sleep_score", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sensors/nope", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown sensor status = %d, want 404", rec.Code)
	}
}

func TestHandleOAuthCallback(t *testing.T) {
	srv, fetcher, store := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/oura/oauth/setup?code=abc123&state=oura_sleep_score", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if !strings.Contains(string(raw), "abc123") {
		t.Errorf("token file = %s, want stored code", raw)
	}
	if fetcher.calls != 1 {
		t.Errorf("sensor updated %d times, want 1 (forced exchange)", fetcher.calls)
	}
}

func TestHandleOAuthCallbackRejections(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/oura/oauth/setup?state=oura_sleep_score", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing code status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/oura/oauth/setup?code=abc&state=unknown", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown state status = %d, want 404", rec.Code)
	}
}
