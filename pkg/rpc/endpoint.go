package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/commands"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/connect"
	"github.com/morezero/components/pkg/dispatcher"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
)

const endpointLogPrefix = "rpc:endpoint"

const (
	defaultMaxMessageSize  = 16 * 1024 * 1024
	defaultKeepaliveTime   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// State is the lifecycle state of an Endpoint.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Registerable adds its entries to an endpoint. Register runs every time the
// endpoint opens, after the dispatch table has been cleared. Implementations
// write to Endpoint.Table directly.
type Registerable interface {
	Register() error
}

// registration keeps a table write so it is replayed on every Open.
type registration struct {
	apply func() error
}

func (r *registration) Register() error {
	return r.apply()
}

// Endpoint serves a dispatch table over gRPC.
//
// Configuration:
//
//	connection.protocol, connection.host, connection.port, connection.uri
//	connection.discovery_key    registers the bound address in discovery
//	credential.ssl_key_file, credential.ssl_crt_file    required for https
//	options.max_message_size    bytes, default 16MB
//	options.keepalive_time      default 30s
//	options.shutdown_timeout    graceful stop limit, default 10s
//	options.rate_limit          calls per second across all methods, 0 is unlimited
//	options.rate_burst          default 1, or the rate limit rounded up
//	options.require_trace_id    rejects calls without a trace id
type Endpoint struct {
	mu            sync.Mutex
	state         State
	resolver      *connect.HTTPResolver
	table         *dispatcher.Table
	registrations []Registerable
	late          []Registerable
	configured    []dispatcher.Interceptor
	obs           observe.Set

	maxMessageSize  int
	keepaliveTime   time.Duration
	shutdownTimeout time.Duration

	server   *grpc.Server
	listener net.Listener
	uri      string
	serveErr chan error
}

// NewEndpoint creates a closed endpoint with default options.
func NewEndpoint() *Endpoint {
	e := &Endpoint{
		resolver:        connect.NewHTTPResolver(),
		table:           dispatcher.NewTable(),
		obs:             observe.NullSet(),
		maxMessageSize:  defaultMaxMessageSize,
		keepaliveTime:   defaultKeepaliveTime,
		shutdownTimeout: defaultShutdownTimeout,
	}
	e.table.Use(e.applyConfigured)
	return e
}

// Configure reads the connection, credentials and options. The interceptors
// built from options replace those of any earlier Configure call.
func (e *Endpoint) Configure(params config.Params) error {
	e.maxMessageSize = params.GetIntWithDefault("options.max_message_size", e.maxMessageSize)
	e.keepaliveTime = params.GetDurationWithDefault("options.keepalive_time", e.keepaliveTime)
	e.shutdownTimeout = params.GetDurationWithDefault("options.shutdown_timeout", e.shutdownTimeout)

	var configured []dispatcher.Interceptor
	if limit := params.GetFloatWithDefault("options.rate_limit", 0); limit > 0 {
		burst := params.GetIntWithDefault("options.rate_burst", max(1, int(math.Ceil(limit))))
		configured = append(configured, dispatcher.RateLimit(rate.NewLimiter(rate.Limit(limit), burst)))
	}
	if params.GetBoolWithDefault("options.require_trace_id", false) {
		configured = append(configured, dispatcher.RequireTraceID())
	}
	e.mu.Lock()
	e.configured = configured
	e.mu.Unlock()

	return e.resolver.Configure(params)
}

// applyConfigured wraps next in the interceptors built by Configure. It is
// installed first, so interceptors added with Use run outside it.
func (e *Endpoint) applyConfigured(method string, next dispatcher.Handler) dispatcher.Handler {
	e.mu.Lock()
	configured := e.configured
	e.mu.Unlock()
	for _, ic := range configured {
		next = ic(method, next)
	}
	return next
}

// SetReferences passes references to the connection resolver, which may need discovery.
func (e *Endpoint) SetReferences(refs refer.Referencer) error {
	return e.resolver.SetReferences(refs)
}

// SetObservability sets the logger, counters and tracer used per call.
func (e *Endpoint) SetObservability(set observe.Set) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.obs = set.OrNull()
}

// State returns the current lifecycle state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsOpen reports whether the endpoint is serving.
func (e *Endpoint) IsOpen() bool {
	return e.State() == StateOpen
}

// Address returns the bound "host:port", or "" when closed.
func (e *Endpoint) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Table returns the dispatch table served by the endpoint.
func (e *Endpoint) Table() *dispatcher.Table {
	return e.table
}

// Register adds r to the registrations run on Open. When the endpoint is
// already open, r registers immediately. While it is opening, r runs before
// the endpoint reports open.
func (e *Endpoint) Register(r Registerable) error {
	e.mu.Lock()
	e.registrations = append(e.registrations, r)
	if e.state == StateOpening {
		e.late = append(e.late, r)
	}
	open := e.state == StateOpen
	e.mu.Unlock()
	if open {
		return r.Register()
	}
	return nil
}

// Unregister removes r. Entries it already added stay until the next Open.
func (e *Endpoint) Unregister(r Registerable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registrations = removeRegisterable(e.registrations, r)
	e.late = removeRegisterable(e.late, r)
}

func removeRegisterable(list []Registerable, r Registerable) []Registerable {
	for i, existing := range list {
		if existing == r {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Use adds dispatch interceptors. The last one added runs outermost.
func (e *Endpoint) Use(interceptors ...dispatcher.Interceptor) {
	e.table.Use(interceptors...)
}

// RegisterCommandSet exposes every command of set as "<service>.<command>",
// now if the endpoint is open and again on every later Open.
func (e *Endpoint) RegisterCommandSet(service string, set *commands.CommandSet) error {
	if set == nil {
		return e.table.RegisterCommandSet(service, nil)
	}
	return e.Register(&registration{apply: func() error {
		return e.table.RegisterCommandSet(service, set)
	}})
}

// RegisterMethod exposes a single handler under a full method name, now if
// the endpoint is open and again on every later Open.
func (e *Endpoint) RegisterMethod(method string, handler dispatcher.Handler) {
	_ = e.Register(&registration{apply: func() error {
		e.table.Register(method, handler)
		return nil
	}})
}

// Open binds the listener, rebuilds the dispatch table and starts serving.
func (e *Endpoint) Open(ctx context.Context, traceID string) error {
	e.mu.Lock()
	switch e.state {
	case StateOpen:
		e.mu.Unlock()
		return nil
	case StateOpening, StateClosing:
		state := e.state
		e.mu.Unlock()
		return apperr.NewConflictError(traceID, "INVALID_STATE",
			fmt.Sprintf("Endpoint cannot open while %s", state)).
			WithDetails("state", state)
	}
	e.state = StateOpening
	e.mu.Unlock()

	if err := e.open(ctx, traceID); err != nil {
		e.setState(StateClosed)
		return err
	}
	return nil
}

func (e *Endpoint) open(ctx context.Context, traceID string) error {
	conn, cred, err := e.resolver.Resolve(ctx, traceID)
	if err != nil {
		return err
	}
	uri := conn.URIString()

	lis, err := net.Listen("tcp", conn.Target())
	if err != nil {
		return apperr.NewConnectionError(traceID, "CANNOT_CONNECT", "Opening gRPC endpoint failed").
			WithDetails("uri", uri).
			WithCause(err)
	}

	opts := e.serverOptions()
	if conn.IsTLS() {
		creds, err := credentials.NewServerTLSFromFile(cred.SSLCrtFile, cred.SSLKeyFile)
		if err != nil {
			lis.Close()
			return apperr.NewConfigError(traceID, "BAD_CREDENTIALS", "TLS credentials cannot be loaded").
				WithDetails("uri", uri).
				WithCause(err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	server := grpc.NewServer(opts...)
	server.RegisterService(&commandableServiceDesc, e)

	e.table.Clear()
	e.mu.Lock()
	pending := append([]Registerable(nil), e.registrations...)
	e.late = nil
	e.mu.Unlock()

	// Registrations added while opening are drained until none are left, then
	// the endpoint switches to open under the same lock.
	serveErr := make(chan error, 1)
	var obs observe.Set
	for {
		for _, r := range pending {
			if err := r.Register(); err != nil {
				lis.Close()
				e.table.Clear()
				return err
			}
		}
		e.mu.Lock()
		if len(e.late) == 0 {
			e.server = server
			e.listener = lis
			e.uri = uri
			e.serveErr = serveErr
			e.state = StateOpen
			obs = e.obs
			e.mu.Unlock()
			break
		}
		pending, e.late = e.late, nil
		e.mu.Unlock()
	}

	go func() {
		serveErr <- server.Serve(lis)
	}()

	bound := conn
	bound.URI = ""
	if addr, ok := lis.Addr().(*net.TCPAddr); ok {
		bound.Port = addr.Port
	}
	if err := e.resolver.RegisterConnection(ctx, traceID, bound); err != nil {
		obs.Logger.Error(traceID, err, "failed to register %s in discovery", bound.URIString())
	}

	obs.Logger.Info(traceID, "opened gRPC endpoint at %s", lis.Addr())
	slog.Info(fmt.Sprintf("%s - listening on %s methods=%d", endpointLogPrefix, lis.Addr(), len(e.table.Methods())))
	return nil
}

func (e *Endpoint) serverOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(e.maxMessageSize),
		grpc.MaxSendMsgSize(e.maxMessageSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    e.keepaliveTime,
			Timeout: 10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(),
			RequestIDInterceptor(),
			LoggingInterceptor(),
		),
	}
}

// Close stops serving. In-flight calls get up to options.shutdown_timeout to finish.
func (e *Endpoint) Close(ctx context.Context, traceID string) error {
	e.mu.Lock()
	if e.state != StateOpen {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosing
	server, serveErr, uri, obs := e.server, e.serveErr, e.uri, e.obs
	timeout := e.shutdownTimeout
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn(fmt.Sprintf("%s - graceful stop timed out after %s", endpointLogPrefix, timeout))
		server.Stop()
		<-done
	case <-ctx.Done():
		server.Stop()
		<-done
	}

	err := <-serveErr
	e.table.Clear()

	e.mu.Lock()
	e.server = nil
	e.listener = nil
	e.serveErr = nil
	e.state = StateClosed
	e.mu.Unlock()

	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		obs.Logger.Error(traceID, err, "gRPC endpoint at %s stopped with an error", uri)
		return apperr.NewConnectionError(traceID, "SERVE_FAILED", "gRPC endpoint stopped with an error").
			WithDetails("uri", uri).
			WithCause(err)
	}
	obs.Logger.Info(traceID, "closed gRPC endpoint at %s", uri)
	return nil
}

// Invoke dispatches one envelope. Application failures travel in the
// response, so the returned error is always nil.
func (e *Endpoint) Invoke(ctx context.Context, req *dispatcher.InvokeRequest) (*dispatcher.InvokeResponse, error) {
	e.mu.Lock()
	obs := e.obs
	e.mu.Unlock()

	traceID := req.GetTraceID()
	service, command, _ := strings.Cut(req.Method, ".")

	obs.Counters.IncrementOne(req.Method + ".call_count")
	timing := obs.Counters.BeginTiming(req.Method + ".exec_time")
	span := obs.Tracer.BeginTrace(ctx, traceID, service, command)

	resp := e.table.Dispatch(ctx, req)
	timing.EndTiming()

	if resp.Error != nil {
		obs.Counters.IncrementOne(req.Method + ".call_errors")
		appErr := resp.Error.ToError()
		span.EndFailure(appErr)
		obs.Logger.Error(traceID, appErr, "call %s failed request_id=%s", req.Method, RequestID(ctx))
		return resp, nil
	}
	span.EndTrace()
	obs.Logger.Trace(traceID, "call %s succeeded request_id=%s", req.Method, RequestID(ctx))
	return resp, nil
}

func (e *Endpoint) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}
