package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/wardcare/wardcare/internal/config"
	"github.com/wardcare/wardcare/internal/domain/alerting"
	"github.com/wardcare/wardcare/internal/engine"
	"github.com/wardcare/wardcare/internal/platform/db"
	"github.com/wardcare/wardcare/internal/platform/lock"
)

// ---------------------------------------------------------------------------
// resolveSigningKey
// ---------------------------------------------------------------------------

func TestResolveSigningKey_FromConfig(t *testing.T) {
	cfg := &config.Config{Env: "production", AuthSigningKey: "deadbeef"}
	key, generated, err := resolveSigningKey(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected configured key, got generated")
	}
	if hex.EncodeToString(key) != "deadbeef" {
		t.Errorf("key = %x, want deadbeef", key)
	}
}

func TestResolveSigningKey_InvalidHex(t *testing.T) {
	cfg := &config.Config{Env: "production", AuthSigningKey: "not-hex"}
	if _, _, err := resolveSigningKey(cfg); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestResolveSigningKey_GeneratedInDev(t *testing.T) {
	cfg := &config.Config{Env: "development"}
	key, generated, err := resolveSigningKey(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated {
		t.Error("expected a generated key")
	}
	if len(key) != 32 {
		t.Errorf("len(key) = %d, want 32", len(key))
	}
}

func TestResolveSigningKey_RequiredOutsideDev(t *testing.T) {
	cfg := &config.Config{Env: "production"}
	if _, _, err := resolveSigningKey(cfg); err == nil {
		t.Fatal("expected error when key missing in production")
	}
}

// ---------------------------------------------------------------------------
// newLocker
// ---------------------------------------------------------------------------

func TestNewLocker_LocalWithoutRedis(t *testing.T) {
	l, err := newLocker(context.Background(), &config.Config{LockTTL: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := l.(*lock.Local); !ok {
		t.Errorf("locker = %T, want *lock.Local", l)
	}
}

func TestNewLocker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{RedisURL: "redis://" + mr.Addr(), LockTTL: time.Second}
	l, err := newLocker(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := l.(*lock.Redis); !ok {
		t.Errorf("locker = %T, want *lock.Redis", l)
	}
}

func TestNewLocker_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg := &config.Config{RedisURL: "redis://" + addr, LockTTL: time.Second}
	if _, err := newLocker(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

// ---------------------------------------------------------------------------
// printStatus
// ---------------------------------------------------------------------------

func TestPrintStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "ward_core", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "alert_log"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "yes") || !strings.Contains(lines[1], "2026-03-01T08:00:00Z") {
		t.Errorf("applied row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "no") || !strings.HasSuffix(lines[2], "-") {
		t.Errorf("pending row = %q", lines[2])
	}
}

// ---------------------------------------------------------------------------
// newServer
// ---------------------------------------------------------------------------

func testServerApp() *app {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ward_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	return &app{
		registry: reg,
		engine:   engine.New(engine.Deps{Ward: alerting.NewWardView(nil, nil, nil, nil, time.Minute)}),
	}
}

func TestNewServer_HealthAndMetrics(t *testing.T) {
	cfg := &config.Config{Env: "production", CORSOrigins: []string{"*"}}
	e := newServer(cfg, testServerApp(), zerolog.Nop(), []byte("secret"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ward_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}
}

func TestNewServer_APIRequiresToken(t *testing.T) {
	cfg := &config.Config{Env: "production", AuthSigningKey: "deadbeef", CORSOrigins: []string{"*"}}
	e := newServer(cfg, testServerApp(), zerolog.Nop(), []byte{0xde, 0xad, 0xbe, 0xef})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ward/alerts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestNewServer_RegistersOrderRoutes(t *testing.T) {
	cfg := &config.Config{Env: "production", CORSOrigins: []string{"*"}}
	e := newServer(cfg, testServerApp(), zerolog.Nop(), []byte("secret"))

	want := map[string]bool{
		http.MethodPost + " /api/v1/patients/:id/orders": false,
		http.MethodGet + " /api/v1/orders":               false,
		http.MethodPost + " /api/v1/orders/:id/toggle":   false,
	}
	for _, r := range e.Routes() {
		if _, ok := want[r.Method+" "+r.Path]; ok {
			want[r.Method+" "+r.Path] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
