// Package server runs the dummy service: a component container with HTTP health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/morezero/components/internal/config"
	"github.com/morezero/components/internal/dummy"
	pcfg "github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/container"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
	"github.com/morezero/components/pkg/rpc"
	"github.com/morezero/components/pkg/run"
)

const logPrefix = "server:server"

// Server owns the component container and the HTTP side endpoint.
type Server struct {
	cfg        *config.Config
	container  *container.Container
	httpServer *http.Server
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel, cfg.LogFormat)

	slog.Info(fmt.Sprintf("%s - Starting %s", logPrefix, cfg.ServiceName))

	s, err := New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Open(ctx); err != nil {
		return err
	}
	serveErr := s.Serve(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Close(closeCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return serveErr
}

// SetupLogging installs the default slog logger.
func SetupLogging(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if strings.EqualFold(format, "json") {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
}

// New builds a server whose container holds the stock components and the dummy components.
// CONFIG_FILE selects a component list; without it one is derived from cfg.
func New(cfg *config.Config) (*Server, error) {
	var (
		ccfg *container.Config
		err  error
	)
	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("%s - config file %s: %w", logPrefix, cfg.ConfigFile, err)
		}
		ccfg, err = container.ReadConfig(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", logPrefix, cfg.ConfigFile, err)
		}
	} else {
		ccfg = BuildContainerConfig(cfg)
	}

	c := container.New()
	c.AddFactory(dummy.NewFactory())
	c.SetConfig(ccfg)
	return &Server{cfg: cfg, container: c}, nil
}

// BuildContainerConfig derives the component list from environment configuration.
func BuildContainerConfig(cfg *config.Config) *container.Config {
	name := "default"
	components := []container.ComponentConfig{
		{
			Locator: locator.New("morezero", "logger", "slog", name, "1.0"),
			Params:  pcfg.FromTuples("level", cfg.LogLevel, "format", cfg.LogFormat),
		},
		{
			Locator: locator.New("morezero", "counters", "prometheus", name, "1.0"),
			Params:  pcfg.FromTuples("namespace", metricNamespace(cfg.ServiceName)),
		},
		{
			Locator: locator.New("morezero", "tracer", "otel", name, "1.0"),
			Params:  pcfg.FromTuples("service_name", cfg.ServiceName, "exporter", "none"),
		},
	}

	if cfg.NATSURL != "" {
		components = append(components,
			container.ComponentConfig{
				Locator: locator.New("morezero", "discovery", "nats", name, "1.0"),
				Params:  pcfg.FromTuples("url", cfg.NATSURL),
			},
			container.ComponentConfig{
				Locator: locator.New("morezero", "events", "nats", name, "1.0"),
				Params:  pcfg.FromTuples("url", cfg.NATSURL),
			},
		)
	} else {
		components = append(components, container.ComponentConfig{
			Locator: locator.New("morezero", "discovery", "memory", name, "1.0"),
		})
	}

	if cfg.DatabaseURL != "" {
		params := pcfg.FromTuples("connection.uri", cfg.DatabaseURL)
		if cfg.RunMigrations {
			params["migrations_path"] = cfg.MigrationPath
		}
		components = append(components, container.ComponentConfig{
			Locator: locator.New("dummies", "persistence", "postgres", name, "1.0"),
			Params:  params,
		})
	} else {
		components = append(components, container.ComponentConfig{
			Locator: locator.New("dummies", "persistence", "memory", name, "1.0"),
		})
	}

	service := pcfg.FromTuples(
		"connection.protocol", "http",
		"connection.host", cfg.GRPCHost,
		"connection.port", cfg.GRPCPort,
		"options.shutdown_timeout", cfg.ShutdownTimeout.String(),
	)
	if cfg.DiscoveryKey != "" {
		service["connection.discovery_key"] = cfg.DiscoveryKey
	}
	if cfg.RateLimit > 0 {
		service["options.rate_limit"] = strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64)
	}
	components = append(components,
		container.ComponentConfig{Locator: locator.New("dummies", "controller", "default", name, "1.0")},
		container.ComponentConfig{Locator: locator.New("dummies", "service", "grpc", name, "1.0"), Params: service},
	)
	return &container.Config{Components: components}
}

func metricNamespace(serviceName string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, serviceName)
	if ns == "" || (ns[0] >= '0' && ns[0] <= '9') {
		ns = "svc_" + ns
	}
	return ns
}

// Container exposes the component container.
func (s *Server) Container() *container.Container {
	return s.container
}

// Open opens every component.
func (s *Server) Open(ctx context.Context) error {
	if err := s.container.Open(ctx, "server"); err != nil {
		return fmt.Errorf("%s - failed to open components: %w", logPrefix, err)
	}
	for _, svc := range refer.Optional[*rpc.CommandableService](s.container.References(), dummy.ServiceLocator) {
		if ep := svc.Endpoint(); ep != nil {
			slog.Info(fmt.Sprintf("%s - %s service listening on %s", logPrefix, svc.Name(), ep.Address()))
		}
	}
	return nil
}

// Close closes every component.
func (s *Server) Close(ctx context.Context) error {
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}
	return s.container.Close(ctx, "server")
}

// Serve runs the HTTP health server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpAddr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s - HTTP server error: %w", logPrefix, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info(fmt.Sprintf("%s - shutting down HTTP server", logPrefix))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	slog.Info(fmt.Sprintf("%s - %s is ready", logPrefix, s.cfg.ServiceName))
	return g.Wait()
}

// Handler returns the HTTP routes: /, /health, /ready and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", s.handleReady())
	mux.Handle("/metrics", s.metricsHandler())
	return mux
}

// HealthOutput reports whether every openable component is open.
type HealthOutput struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
	Timestamp  string          `json:"timestamp"`
}

func (s *Server) health() *HealthOutput {
	h := &HealthOutput{
		Status:     "healthy",
		Components: map[string]bool{},
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if !s.container.IsOpen() {
		h.Status = "unhealthy"
	}
	refs := s.container.References()
	for _, loc := range refs.Locators() {
		opener, ok := refs.GetOneOptional(loc).(run.Opener)
		if !ok {
			continue
		}
		open := opener.IsOpen()
		h.Components[loc.String()] = open
		if !open {
			h.Status = "unhealthy"
		}
	}
	return h
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.health()
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	}
}

func (s *Server) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ready"
		if !s.container.IsOpen() {
			status = "starting"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// metricsHandler serves the registry of the configured Prometheus counters, if any.
func (s *Server) metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counters, ok := refer.OneOptional[*observe.PrometheusCounters](s.container.References(), container.PrometheusCountersLocator)
		if !ok {
			http.NotFound(w, r)
			return
		}
		counters.Handler().ServeHTTP(w, r)
	})
}

const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>

  <h2>Components</h2>
  <table>
    <thead><tr><th>Locator</th><th>Open</th></tr></thead>
    <tbody>
    {{range .Locators}}<tr><td>{{.}}</td><td>{{index $.Health.Components .}}</td></tr>
    {{end}}
    </tbody>
  </table>

  <h2>Methods</h2>
  {{if not .Methods}}<p>No methods registered.</p>{{else}}
  <table>
    <thead><tr><th>Method</th><th>Address</th></tr></thead>
    <tbody>
    {{range .Methods}}<tr><td>{{.Name}}</td><td>{{.Address}}</td></tr>
    {{end}}
    </tbody>
  </table>
  {{end}}
</body>
</html>
`

type methodRow struct {
	Name    string
	Address string
}

type homeData struct {
	Name     string
	Health   *HealthOutput
	Locators []string
	Methods  []methodRow
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := homeData{Name: s.cfg.ServiceName, Health: s.health()}
		for _, loc := range s.container.References().Locators() {
			data.Locators = append(data.Locators, loc.String())
		}
		sort.Strings(data.Locators)
		for _, ep := range s.endpoints() {
			for _, m := range ep.Table().Methods() {
				data.Methods = append(data.Methods, methodRow{Name: m, Address: ep.Address()})
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// endpoints returns every distinct endpoint, shared or owned by a service.
func (s *Server) endpoints() []*rpc.Endpoint {
	refs := s.container.References()
	seen := map[*rpc.Endpoint]bool{}
	var out []*rpc.Endpoint
	add := func(ep *rpc.Endpoint) {
		if ep != nil && !seen[ep] {
			seen[ep] = true
			out = append(out, ep)
		}
	}
	for _, ep := range refer.Optional[*rpc.Endpoint](refs, rpc.EndpointLocator) {
		add(ep)
	}
	for _, svc := range refer.Optional[*rpc.CommandableService](refs, locator.New("", "service", "", "", "")) {
		add(svc.Endpoint())
	}
	return out
}
