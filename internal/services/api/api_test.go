package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/busyday-go/internal/components/scheduling"
	_ "github.com/MahdiBaghbani/busyday-go/internal/interceptors/ratelimit"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/config"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/deps"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/http/realip"
	memstore "github.com/MahdiBaghbani/busyday-go/internal/store/memory"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// setupTestDeps wires a memory store and cache into the shared deps.
func setupTestDeps(t *testing.T, cfg *config.Config) *memstore.Driver {
	t.Helper()
	st := memstore.New()
	c := memory.New(time.Minute, time.Minute)
	t.Cleanup(func() {
		c.Close()
		deps.ResetDeps()
	})

	if cfg == nil {
		cfg = config.DevConfig()
	}
	deps.ResetDeps()
	deps.SetDeps(&deps.Deps{
		Store:      st,
		Health:     st,
		Engine:     scheduling.NewEngine(st, testLogger),
		Aggregator: scheduling.NewAggregator(st, nil, testLogger),
		Config:     cfg,
		Cache:      c,
		RealIP:     realip.NewTrustedProxies(nil),
	})
	return st
}

func TestNew_FailsWithoutSharedDeps(t *testing.T) {
	deps.ResetDeps()

	_, err := New(map[string]any{}, testLogger)
	if err == nil {
		t.Error("expected error when SharedDeps not initialized")
	}
}

func TestNew_FailsWithoutEngine(t *testing.T) {
	deps.ResetDeps()
	deps.SetDeps(&deps.Deps{Config: config.DevConfig()})
	defer deps.ResetDeps()

	if _, err := New(map[string]any{}, testLogger); err == nil {
		t.Error("expected error when engine is missing")
	}
}

func TestService_PrefixAndUnprotected(t *testing.T) {
	setupTestDeps(t, nil)

	svc, err := New(map[string]any{}, testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if svc.Prefix() != "api" {
		t.Errorf("expected prefix 'api', got %q", svc.Prefix())
	}
	unprotected := svc.Unprotected()
	if len(unprotected) != 1 || unprotected[0] != "/healthz" {
		t.Errorf("expected only /healthz unprotected, got %v", unprotected)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestService_Healthz(t *testing.T) {
	st := setupTestDeps(t, nil)

	svc, err := New(map[string]any{}, testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}

	st.Close()
	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after store close, got %d", rec.Code)
	}
}

func TestService_MountsSchedulingRoutes(t *testing.T) {
	setupTestDeps(t, nil)

	svc, err := New(map[string]any{}, testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	caller := uuid.New()
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/invitations/incoming", http.StatusOK},
		{http.MethodGet, "/invitations/outgoing", http.StatusOK},
		{http.MethodGet, "/invitations/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "/users/me/busydays?from=2026-01-01&to=2026-01-31", http.StatusOK},
		{http.MethodGet, "/users/" + caller.String() + "/calendar?from=2026-01-01&to=2026-01-31", http.StatusOK},
		{http.MethodGet, "/users/" + uuid.NewString() + "/calendar?from=2026-01-01&to=2026-01-31", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req = req.WithContext(auth.WithCaller(req.Context(), caller))
			rec := httptest.NewRecorder()
			svc.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestService_RatelimitProfile(t *testing.T) {
	cfg := config.DevConfig()
	cfg.HTTP.Interceptors = map[string]map[string]any{
		"ratelimit": {
			"profiles": map[string]any{
				"mutations": map[string]any{"requests_per_window": int64(1), "window_seconds": 60},
			},
		},
	}
	setupTestDeps(t, cfg)

	svc, err := New(map[string]any{"ratelimit": map[string]any{"profile": "mutations"}}, testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	caller := uuid.New()
	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/invitations", strings.NewReader(`{}`))
		req = req.WithContext(auth.WithCaller(context.Background(), caller))
		rec := httptest.NewRecorder()
		svc.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(); code != http.StatusBadRequest {
		t.Fatalf("first create: expected 400 for empty body, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Errorf("second create: expected 429, got %d", code)
	}

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/invitations/incoming", nil)
		req = req.WithContext(auth.WithCaller(context.Background(), caller))
		rec := httptest.NewRecorder()
		svc.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("read %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestNew_UndefinedRatelimitProfile(t *testing.T) {
	setupTestDeps(t, nil)

	_, err := New(map[string]any{"ratelimit": map[string]any{"profile": "missing"}}, testLogger)
	if err == nil {
		t.Fatal("expected error for undefined profile")
	}
}
