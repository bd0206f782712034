package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/commands"
)

const logPrefix = "dispatcher:dispatch"

// Handler executes one dispatch entry. The trace id is available through TraceID(ctx).
type Handler func(ctx context.Context, params commands.Parameters) (any, error)

// Interceptor wraps a handler. The last interceptor added is the outermost one.
// An interceptor may return without calling next.
type Interceptor func(method string, next Handler) Handler

// ServiceState tracks the registration of a service's command set.
type ServiceState int

const (
	Unregistered ServiceState = iota
	Building
	Registered
)

// String returns the lower-case state name.
func (s ServiceState) String() string {
	switch s {
	case Building:
		return "building"
	case Registered:
		return "registered"
	default:
		return "unregistered"
	}
}

// Table maps "<service>.<command>" keys to handlers.
type Table struct {
	mu           sync.RWMutex
	entries      map[string]Handler
	services     map[string]ServiceState
	interceptors []Interceptor
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{
		entries:  map[string]Handler{},
		services: map[string]ServiceState{},
	}
}

// Use appends interceptors.
func (t *Table) Use(interceptors ...Interceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interceptors = append(t.interceptors, interceptors...)
}

// Register binds a handler to a fully qualified method name, replacing any existing one.
func (t *Table) Register(method string, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[method] = handler
}

// RegisterCommandSet adds one entry per command, keyed "<service>.<command>".
// The command set is read once here and not consulted again per call.
func (t *Table) RegisterCommandSet(service string, set *commands.CommandSet) error {
	if set == nil {
		return apperr.NewConfigError("", "NO_COMMAND_SET", fmt.Sprintf("Service %s has no command set", service)).
			WithDetails("service", service)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.services[service] = Building
	for _, cmd := range set.Commands() {
		cmd := cmd
		method := service + "." + cmd.Name()
		t.entries[method] = func(ctx context.Context, params commands.Parameters) (any, error) {
			result, err := cmd.Execute(ctx, params)
			if appErr, ok := apperr.As(err); ok && isCommandPanic(appErr, cmd.Name()) {
				slog.Error(fmt.Sprintf("%s - panic in method=%s: %v", logPrefix, method, appErr.Cause))
				appErr.WithDetails("method", method).WithTraceID(TraceID(ctx))
			}
			return result, err
		}
	}
	t.services[service] = Registered
	slog.Debug(fmt.Sprintf("%s - registered service=%s commands=%d", logPrefix, service, len(set.Commands())))
	return nil
}

// isCommandPanic reports whether err is the invocation error Command.Execute
// builds from a recovered panic.
func isCommandPanic(err *apperr.Error, command string) bool {
	return err.Category == apperr.CategoryFailedInvocation &&
		err.Code == commands.CodeExecFailed &&
		err.Details["command"] == command &&
		err.Details["method"] == ""
}

// UnregisterService drops every entry of service.
func (t *Table) UnregisterService(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := service + "."
	for method := range t.entries {
		if strings.HasPrefix(method, prefix) {
			delete(t.entries, method)
		}
	}
	delete(t.services, service)
}

// ServiceState returns the registration state of service.
func (t *Table) ServiceState(service string) ServiceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.services[service]
}

// Lookup returns the interceptor-wrapped handler for method.
func (t *Table) Lookup(method string) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.entries[method]
	if !ok {
		return nil, false
	}
	for _, ic := range t.interceptors {
		h = ic(method, h)
	}
	return h, true
}

// Methods returns the registered method names in sorted order.
func (t *Table) Methods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	methods := make([]string, 0, len(t.entries))
	for m := range t.entries {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Clear drops every entry and service state. Interceptors are kept.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = map[string]Handler{}
	t.services = map[string]ServiceState{}
}

// Dispatch runs the entry named by req.Method and always returns a response.
// Failures of any kind are reported in the response's Error field.
func (t *Table) Dispatch(ctx context.Context, req *InvokeRequest) (resp *InvokeResponse) {
	traceID := req.GetTraceID()
	slog.Debug(fmt.Sprintf("%s - method=%s trace_id=%s", logPrefix, req.Method, traceID))

	handler, ok := t.Lookup(req.Method)
	if !ok {
		return errorResponse(traceID, apperr.NewInvocationError(traceID, "METHOD_NOT_FOUND",
			fmt.Sprintf("Method %s was not found", req.Method)).
			WithDetails("method", req.Method))
	}

	params, err := commands.ParametersFromJSON(req.Args())
	if err != nil {
		return errorResponse(traceID, apperr.NewBadRequestError(traceID, "BAD_ARGS",
			fmt.Sprintf("Arguments of %s are not a JSON object", req.Method)).
			WithDetails("method", req.Method).
			WithCause(err))
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error(fmt.Sprintf("%s - panic in method=%s: %v", logPrefix, req.Method, rec))
			resp = errorResponse(traceID, apperr.NewInvocationError(traceID, "EXEC_FAILED",
				fmt.Sprintf("Execution of %s failed", req.Method)).
				WithDetails("method", req.Method).
				WithCause(fmt.Errorf("panic: %v", rec)).
				WithStack(string(debug.Stack())))
		}
	}()

	result, err := handler(WithTraceID(ctx, traceID), params)
	if err != nil {
		return errorResponse(traceID, err)
	}
	return resultResponse(traceID, req.Method, result)
}

func errorResponse(traceID string, err error) *InvokeResponse {
	d := apperr.Describe(err)
	if d.TraceID == "" {
		d.TraceID = traceID
	}
	return &InvokeResponse{Error: d, ResultEmpty: true}
}

func resultResponse(traceID, method string, result any) *InvokeResponse {
	if result == nil {
		return &InvokeResponse{ResultEmpty: true}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(traceID, apperr.NewInvocationError(traceID, "RESULT_ENCODE",
			fmt.Sprintf("Result of %s cannot be encoded", method)).
			WithDetails("method", method).
			WithCause(err))
	}
	s := string(data)
	return &InvokeResponse{ResultEmpty: false, ResultJSON: &s}
}
