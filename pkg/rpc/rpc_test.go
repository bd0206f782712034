package rpc

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/commands"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/dispatcher"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
)

type echoController struct {
	set *commands.CommandSet
}

func newEchoController() *echoController {
	set := commands.NewCommandSet()
	set.AddCommands(
		commands.NewCommand("echo", nil, func(_ context.Context, p commands.Parameters) (any, error) {
			return p.Get("value"), nil
		}),
		commands.NewCommand("count_args", nil, func(_ context.Context, p commands.Parameters) (any, error) {
			return len(p), nil
		}),
		commands.NewCommand("trace", nil, func(ctx context.Context, _ commands.Parameters) (any, error) {
			return dispatcher.TraceID(ctx), nil
		}),
		commands.NewCommand("nothing", nil, func(context.Context, commands.Parameters) (any, error) {
			return nil, nil
		}),
		commands.NewCommand("fail", nil, func(ctx context.Context, _ commands.Parameters) (any, error) {
			return nil, apperr.NewNotFoundError(dispatcher.TraceID(ctx), "DUMMY_NOT_FOUND", "no such dummy").
				WithDetails("id", "42")
		}),
	)
	return &echoController{set: set}
}

func (c *echoController) CommandSet() *commands.CommandSet { return c.set }

var controllerLocator = locator.New("test", "controller", "default", "default", "1.0")

func openService(t *testing.T, set observe.Set) *CommandableService {
	t.Helper()
	refs := refer.NewReferences()
	require.NoError(t, refs.Put(controllerLocator, newEchoController()))

	svc := NewCommandableService("echo")
	svc.SetObservability(set)
	require.NoError(t, svc.Configure(config.FromTuples(
		"dependencies.controller", "test:controller:*:*:1.0",
		"connection.protocol", "http",
		"connection.host", "127.0.0.1",
		"connection.port", "0",
	)))
	require.NoError(t, svc.SetReferences(refs))
	require.NoError(t, svc.Open(context.Background(), "t"))
	t.Cleanup(func() { _ = svc.Close(context.Background(), "t") })
	return svc
}

func openClient(t *testing.T, address string) *CommandableClient {
	t.Helper()
	client := NewCommandableClient("echo")
	require.NoError(t, client.Configure(config.FromTuples("connection.uri", "http://"+address)))
	require.NoError(t, client.Open(context.Background(), "t"))
	t.Cleanup(func() { _ = client.Close(context.Background(), "t") })
	return client
}

func TestEndToEnd_Invoke(t *testing.T) {
	svc := openService(t, observe.NullSet())
	client := openClient(t, svc.Endpoint().Address())
	ctx := context.Background()

	echoed, err := Call[string](ctx, client, "echo", "t-1", map[string]any{"value": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", echoed)

	count, err := Call[int](ctx, client, "count_args", "t-2", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	traceID, err := Call[string](ctx, client, "trace", "t-3", nil)
	require.NoError(t, err)
	assert.Equal(t, "t-3", traceID)

	raw, err := client.CallCommand(ctx, "nothing", "t-4", nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestEndToEnd_ErrorsTravelInBand(t *testing.T) {
	svc := openService(t, observe.NullSet())
	client := openClient(t, svc.Endpoint().Address())
	ctx := context.Background()

	_, err := client.CallCommand(ctx, "fail", "t-5", nil)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CategoryNotFound, appErr.Category)
	assert.Equal(t, "DUMMY_NOT_FOUND", appErr.Code)
	assert.Equal(t, "t-5", appErr.TraceID)
	assert.Equal(t, "42", appErr.Details["id"])

	_, err = client.CallCommand(ctx, "missing", "t-6", nil)
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CategoryFailedInvocation, appErr.Category)
	assert.Equal(t, "METHOD_NOT_FOUND", appErr.Code)
	assert.Equal(t, "echo.missing", appErr.Details["method"])
}

func TestEndpoint_DeferredRegistration(t *testing.T) {
	endpoint := NewEndpoint()
	require.NoError(t, endpoint.Configure(config.FromTuples("connection.host", "127.0.0.1", "connection.port", "0")))

	calls := 0
	reg := &probeRegistration{register: func() error {
		calls++
		endpoint.Table().Register("probe.ping", func(context.Context, commands.Parameters) (any, error) {
			return "pong", nil
		})
		return nil
	}}
	require.NoError(t, endpoint.Register(reg))
	assert.Equal(t, 0, calls)
	assert.Empty(t, endpoint.Table().Methods())
	assert.Equal(t, StateClosed, endpoint.State())

	ctx := context.Background()
	require.NoError(t, endpoint.Open(ctx, "t"))
	assert.Equal(t, StateOpen, endpoint.State())
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"probe.ping"}, endpoint.Table().Methods())

	require.NoError(t, endpoint.Close(ctx, "t"))
	assert.Equal(t, StateClosed, endpoint.State())
	assert.Empty(t, endpoint.Table().Methods())
	assert.Empty(t, endpoint.Address())

	require.NoError(t, endpoint.Open(ctx, "t"))
	assert.Equal(t, 2, calls)
	require.NoError(t, endpoint.Close(ctx, "t"))
}

func TestEndpoint_BindFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port

	endpoint := NewEndpoint()
	require.NoError(t, endpoint.Configure(config.FromTuples(
		"connection.host", "127.0.0.1",
		"connection.port", strconv.Itoa(port),
	)))
	err = endpoint.Open(context.Background(), "t-bind")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CategoryNoResponse, appErr.Category)
	assert.Equal(t, "CANNOT_CONNECT", appErr.Code)
	assert.Equal(t, "t-bind", appErr.TraceID)
	assert.Contains(t, appErr.Details["uri"], strconv.Itoa(port))
	assert.Equal(t, StateClosed, endpoint.State())
}

func TestEndpoint_InterceptorsAndCounters(t *testing.T) {
	counters := observe.NewPrometheusCounters()
	svc := openService(t, observe.NewSet(nil, []observe.Counters{counters}, nil))

	var order []string
	svc.Endpoint().Use(
		func(method string, next dispatcher.Handler) dispatcher.Handler {
			return func(ctx context.Context, p commands.Parameters) (any, error) {
				order = append(order, "inner")
				return next(ctx, p)
			}
		},
		func(method string, next dispatcher.Handler) dispatcher.Handler {
			return func(ctx context.Context, p commands.Parameters) (any, error) {
				order = append(order, "outer")
				return next(ctx, p)
			}
		},
	)

	client := openClient(t, svc.Endpoint().Address())
	_, err := client.CallCommand(context.Background(), "echo", "t", map[string]any{"value": 1})
	require.NoError(t, err)
	_, err = client.CallCommand(context.Background(), "fail", "t", nil)
	require.Error(t, err)

	assert.Equal(t, []string{"outer", "inner", "outer", "inner"}, order)
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.Counter("echo.echo.call_count")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.Counter("echo.fail.call_errors")))
}

func TestCommandableService_SharedEndpoint(t *testing.T) {
	shared := NewEndpoint()
	require.NoError(t, shared.Configure(config.FromTuples("connection.host", "127.0.0.1", "connection.port", "0")))

	refs := refer.NewReferences()
	require.NoError(t, refs.Put(locator.New("test", "endpoint", "grpc", "default", "1.0"), shared))
	require.NoError(t, refs.Put(controllerLocator, newEchoController()))

	svc := NewCommandableService("echo")
	require.NoError(t, svc.Configure(config.FromTuples("dependencies.controller", controllerLocator.String())))
	require.NoError(t, svc.SetReferences(refs))
	assert.Same(t, shared, svc.Endpoint())

	ctx := context.Background()
	require.NoError(t, svc.Open(ctx, "t"))
	assert.False(t, shared.IsOpen())

	require.NoError(t, shared.Open(ctx, "t"))
	defer shared.Close(ctx, "t")
	assert.True(t, svc.IsOpen())
	assert.Contains(t, shared.Table().Methods(), "echo.echo")

	resp := shared.Table().Dispatch(ctx, dispatcher.NewInvokeRequest("echo.count_args", "t", nil))
	require.Nil(t, resp.Error)
	assert.Equal(t, "0", string(resp.Result()))
}

func TestCommandableService_MissingController(t *testing.T) {
	svc := NewCommandableService("echo")
	err := svc.SetReferences(refer.NewReferences())
	assert.True(t, apperr.IsCategory(err, apperr.CategoryMisconfiguration))

	require.NoError(t, svc.Configure(config.FromTuples("dependencies.service", "test:service:*:*:1.0")))
	err = svc.SetReferences(refer.NewReferences())
	assert.True(t, apperr.HasCode(err, "REF_ERROR"))
}

func TestEndpoint_ConfiguredInterceptors(t *testing.T) {
	ep := NewEndpoint()
	require.NoError(t, ep.Configure(config.FromTuples(
		"options.rate_limit", "0.001",
		"options.rate_burst", "1",
		"options.require_trace_id", "true",
	)))
	table := ep.Table()
	table.Register("echo.ping", func(context.Context, commands.Parameters) (any, error) { return "pong", nil })

	resp := table.Dispatch(context.Background(), dispatcher.NewInvokeRequest("echo.ping", "", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NO_TRACE_ID", resp.Error.Code)

	resp = table.Dispatch(context.Background(), dispatcher.NewInvokeRequest("echo.ping", "t1", nil))
	require.Nil(t, resp.Error)
	assert.Equal(t, `"pong"`, string(resp.Result()))

	resp = table.Dispatch(context.Background(), dispatcher.NewInvokeRequest("echo.ping", "t2", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)
}

func TestEndpoint_ReconfigureReplacesInterceptors(t *testing.T) {
	ep := NewEndpoint()
	require.NoError(t, ep.Configure(config.FromTuples(
		"options.rate_limit", "0.001",
		"options.rate_burst", "1",
		"options.require_trace_id", "true",
	)))
	require.NoError(t, ep.Configure(config.FromTuples("options.rate_limit", "1000")))

	table := ep.Table()
	table.Register("echo.ping", func(context.Context, commands.Parameters) (any, error) { return "pong", nil })
	for i := 0; i < 3; i++ {
		resp := table.Dispatch(context.Background(), dispatcher.NewInvokeRequest("echo.ping", "", nil))
		require.Nil(t, resp.Error, "call %d", i)
	}
}

func TestEndpoint_MethodsSurviveReopen(t *testing.T) {
	ep := NewEndpoint()
	require.NoError(t, ep.Configure(config.FromTuples("connection.host", "127.0.0.1", "connection.port", "0")))
	ep.RegisterMethod("echo.ping", func(context.Context, commands.Parameters) (any, error) { return "pong", nil })
	require.NoError(t, ep.RegisterCommandSet("echo", newEchoController().CommandSet()))
	assert.Empty(t, ep.Table().Methods())

	ctx := context.Background()
	for round := 0; round < 2; round++ {
		require.NoError(t, ep.Open(ctx, "t"))
		assert.Contains(t, ep.Table().Methods(), "echo.ping")
		assert.Contains(t, ep.Table().Methods(), "echo.echo")
		require.NoError(t, ep.Close(ctx, "t"))
	}

	assert.Error(t, ep.RegisterCommandSet("broken", nil))
}

func TestEndpoint_RegisterWhileOpening(t *testing.T) {
	ep := NewEndpoint()
	require.NoError(t, ep.Configure(config.FromTuples("connection.host", "127.0.0.1", "connection.port", "0")))

	lateCalls := 0
	late := &probeRegistration{register: func() error {
		lateCalls++
		ep.Table().Register("late.ping", func(context.Context, commands.Parameters) (any, error) { return "pong", nil })
		return nil
	}}
	first := &probeRegistration{register: func() error {
		assert.Equal(t, StateOpening, ep.State())
		return ep.Register(late)
	}}
	require.NoError(t, ep.Register(first))

	ctx := context.Background()
	require.NoError(t, ep.Open(ctx, "t"))
	defer ep.Close(ctx, "t")
	assert.Equal(t, 1, lateCalls)
	assert.Contains(t, ep.Table().Methods(), "late.ping")
}

func TestClient_NotOpened(t *testing.T) {
	_, err := NewCommandableClient("echo").CallCommand(context.Background(), "echo", "t", nil)
	assert.True(t, apperr.HasCode(err, "NOT_OPENED"))
}

type probeRegistration struct {
	register func() error
}

func (p *probeRegistration) Register() error { return p.register() }
