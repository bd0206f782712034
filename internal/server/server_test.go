package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/morezero/components/internal/config"
	"github.com/morezero/components/pkg/container"
)

const serverTestPrefix = "server:server_test"

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:        "dummy-test",
		GRPCHost:           "127.0.0.1",
		GRPCPort:           0,
		MigrationPath:      "migrations",
		HTTPPort:           0,
		HealthCheckTimeout: 5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// openServer returns an opened Server backed by memory components.
func openServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("%s - New failed: %v", serverTestPrefix, err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("%s - Open failed: %v", serverTestPrefix, err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func locatorsOf(cfg *container.Config) []string {
	var out []string
	for _, c := range cfg.Components {
		out = append(out, c.Locator.String())
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestBuildContainerConfig_MemoryDefaults(t *testing.T) {
	cfg := testConfig()
	ccfg := BuildContainerConfig(cfg)
	locators := locatorsOf(ccfg)

	for _, want := range []string{
		"morezero:logger:slog:default:1.0",
		"morezero:counters:prometheus:default:1.0",
		"morezero:tracer:otel:default:1.0",
		"morezero:discovery:memory:default:1.0",
		"dummies:persistence:memory:default:1.0",
		"dummies:controller:default:default:1.0",
		"dummies:service:grpc:default:1.0",
	} {
		if !contains(locators, want) {
			t.Errorf("%s - missing component %s in %v", serverTestPrefix, want, locators)
		}
	}

	service := ccfg.Components[len(ccfg.Components)-1].Params
	if got := service.GetString("connection.host"); got != "127.0.0.1" {
		t.Errorf("%s - connection.host = %q", serverTestPrefix, got)
	}
	if got := service.GetIntWithDefault("connection.port", -1); got != 0 {
		t.Errorf("%s - connection.port = %d", serverTestPrefix, got)
	}
	if _, ok := service.Get("options.rate_limit"); ok {
		t.Errorf("%s - rate limit should be unset by default", serverTestPrefix)
	}
}

func TestBuildContainerConfig_NATSAndPostgres(t *testing.T) {
	cfg := testConfig()
	cfg.NATSURL = "nats://127.0.0.1:4222"
	cfg.DatabaseURL = "postgres://test@localhost/test"
	cfg.RunMigrations = true
	cfg.DiscoveryKey = "dummy"
	cfg.RateLimit = 12.5

	ccfg := BuildContainerConfig(cfg)
	locators := locatorsOf(ccfg)

	for _, want := range []string{
		"morezero:discovery:nats:default:1.0",
		"morezero:events:nats:default:1.0",
		"dummies:persistence:postgres:default:1.0",
	} {
		if !contains(locators, want) {
			t.Errorf("%s - missing component %s in %v", serverTestPrefix, want, locators)
		}
	}
	if contains(locators, "morezero:discovery:memory:default:1.0") {
		t.Errorf("%s - memory discovery should not be used with NATS", serverTestPrefix)
	}

	for _, c := range ccfg.Components {
		switch c.Locator.String() {
		case "dummies:persistence:postgres:default:1.0":
			if got := c.Params.GetString("migrations_path"); got != "migrations" {
				t.Errorf("%s - migrations_path = %q", serverTestPrefix, got)
			}
		case "dummies:service:grpc:default:1.0":
			if got := c.Params.GetString("connection.discovery_key"); got != "dummy" {
				t.Errorf("%s - discovery_key = %q", serverTestPrefix, got)
			}
			if got := c.Params.GetString("options.rate_limit"); got != "12.5" {
				t.Errorf("%s - rate_limit = %q", serverTestPrefix, got)
			}
		}
	}
}

func TestMetricNamespace(t *testing.T) {
	tests := map[string]string{
		"dummyservice": "dummyservice",
		"dummy-test":   "dummy_test",
		"9lives":       "svc_9lives",
		"":             "svc_",
	}
	for in, want := range tests {
		if got := metricNamespace(in); got != want {
			t.Errorf("%s - metricNamespace(%q) = %q, want %q", serverTestPrefix, in, got, want)
		}
	}
}

func TestNew_MissingConfigFile(t *testing.T) {
	cfg := testConfig()
	cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); err == nil {
		t.Errorf("%s - expected error for missing CONFIG_FILE", serverTestPrefix)
	}
}

func TestNew_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "components.yaml")
	content := `components:
  - locator: "dummies:persistence:memory:default:1.0"
  - locator: "dummies:controller:default:default:1.0"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.ConfigFile = path

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("%s - New failed: %v", serverTestPrefix, err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("%s - Open failed: %v", serverTestPrefix, err)
	}
	defer s.Close(context.Background())
	if n := len(s.Container().Components()); n != 2 {
		t.Errorf("%s - components = %d, want 2", serverTestPrefix, n)
	}
}

func TestHealthHandler_Healthy(t *testing.T) {
	s := openServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200: %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
	var h HealthOutput
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if h.Status != "healthy" {
		t.Errorf("%s - status = %q", serverTestPrefix, h.Status)
	}
	if !h.Components["dummies:service:grpc:default:1.0"] {
		t.Errorf("%s - expected service to be reported open: %v", serverTestPrefix, h.Components)
	}
}

func TestHealthHandler_UnhealthyAfterClose(t *testing.T) {
	s := openServer(t)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("%s - Close failed: %v", serverTestPrefix, err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("%s - status = %d, want 503", serverTestPrefix, rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("%s - ready status = %d, want 503", serverTestPrefix, rec.Code)
	}
}

func TestReadyHandler(t *testing.T) {
	s := openServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Errorf("%s - body = %s", serverTestPrefix, rec.Body.String())
	}
}

func TestMetricsHandler(t *testing.T) {
	s := openServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("%s - GET /metrics: %v", serverTestPrefix, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("%s - status = %d, want 200", serverTestPrefix, resp.StatusCode)
	}
}

func TestHandleHome(t *testing.T) {
	s := openServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"dummy-test", "dummy.create_dummy", "dummies:controller:default:default:1.0"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("%s - home page missing %q", serverTestPrefix, want)
		}
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	s := openServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("%s - Serve returned %v", serverTestPrefix, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - Serve did not stop", serverTestPrefix)
	}
}
