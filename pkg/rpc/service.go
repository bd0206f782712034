package rpc

import (
	"context"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/commands"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
)

// EndpointLocator matches any shared gRPC endpoint.
var EndpointLocator = locator.New("", "endpoint", "grpc", "", "")

// CommandableService exposes the command set of a business component through
// an Endpoint under the "<name>.<command>" keys.
//
// Dependencies: "endpoint" (optional, a shared Endpoint) and "controller" or
// "service" (the Commandable). Without a shared endpoint the service opens its
// own, configured from the service's parameters.
type CommandableService struct {
	name   string
	params config.Params
	deps   *refer.DependencyResolver
	obs    observe.Set

	endpoint      *Endpoint
	localEndpoint bool
	commandable   commands.Commandable
}

// NewCommandableService creates a service whose methods are prefixed with name.
func NewCommandableService(name string) *CommandableService {
	deps := refer.NewDependencyResolver()
	deps.Put("endpoint", EndpointLocator)
	return &CommandableService{
		name:   name,
		params: config.NewParams(),
		deps:   deps,
		obs:    observe.NullSet(),
	}
}

// DependOn sets the locator of a named dependency. Configuration read later
// overrides it.
func (s *CommandableService) DependOn(name string, loc locator.Locator) {
	s.deps.Put(name, loc)
}

// Name returns the method prefix.
func (s *CommandableService) Name() string {
	return s.name
}

// Configure reads dependencies and keeps params for a local endpoint.
// A "name" key overrides the method prefix.
func (s *CommandableService) Configure(params config.Params) error {
	s.params = params.Clone()
	s.name = params.GetStringWithDefault("name", s.name)
	return s.deps.Configure(params)
}

// SetObservability sets the observability handed to a local endpoint.
func (s *CommandableService) SetObservability(set observe.Set) {
	s.obs = set.OrNull()
}

// SetReferences resolves the endpoint and the business component, then
// schedules registration on the endpoint.
func (s *CommandableService) SetReferences(refs refer.Referencer) error {
	if err := s.deps.SetReferences(refs); err != nil {
		return err
	}

	commandable, err := s.resolveCommandable()
	if err != nil {
		return err
	}
	s.commandable = commandable

	if endpoint, ok := refer.Dependency[*Endpoint](s.deps, "endpoint"); ok {
		s.endpoint = endpoint
		s.localEndpoint = false
	} else {
		endpoint := NewEndpoint()
		if err := endpoint.Configure(s.params); err != nil {
			return err
		}
		if err := endpoint.SetReferences(refs); err != nil {
			return err
		}
		endpoint.SetObservability(s.obs)
		s.endpoint = endpoint
		s.localEndpoint = true
	}
	return s.endpoint.Register(s)
}

func (s *CommandableService) resolveCommandable() (commands.Commandable, error) {
	if _, ok := s.deps.Locate("controller"); ok {
		return refer.Required[commands.Commandable](s.deps, "controller")
	}
	if _, ok := s.deps.Locate("service"); ok {
		return refer.Required[commands.Commandable](s.deps, "service")
	}
	return refer.Required[commands.Commandable](s.deps, "controller")
}

// UnsetReferences detaches from the endpoint.
func (s *CommandableService) UnsetReferences() {
	if s.endpoint != nil {
		s.endpoint.Unregister(s)
	}
	s.endpoint = nil
	s.localEndpoint = false
	s.commandable = nil
}

// Register adds one dispatch entry per command. The endpoint calls it on Open.
func (s *CommandableService) Register() error {
	if s.commandable == nil {
		return apperr.NewConfigError("", "NO_CONTROLLER", "Service has no commandable dependency").
			WithDetails("service", s.name)
	}
	return s.endpoint.Table().RegisterCommandSet(s.name, s.commandable.CommandSet())
}

// Endpoint returns the endpoint the service registers on.
func (s *CommandableService) Endpoint() *Endpoint {
	return s.endpoint
}

// IsOpen reports whether the endpoint is open.
func (s *CommandableService) IsOpen() bool {
	return s.endpoint != nil && s.endpoint.IsOpen()
}

// Open opens the endpoint when the service owns it.
func (s *CommandableService) Open(ctx context.Context, traceID string) error {
	if s.endpoint == nil {
		return apperr.NewConfigError(traceID, "NO_ENDPOINT", "Service references are not set").
			WithDetails("service", s.name)
	}
	if !s.localEndpoint {
		return nil
	}
	return s.endpoint.Open(ctx, traceID)
}

// Close closes the endpoint when the service owns it.
func (s *CommandableService) Close(ctx context.Context, traceID string) error {
	if s.endpoint == nil || !s.localEndpoint {
		return nil
	}
	return s.endpoint.Close(ctx, traceID)
}
