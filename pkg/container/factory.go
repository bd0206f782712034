package container

import (
	"github.com/morezero/components/pkg/build"
	"github.com/morezero/components/pkg/discovery"
	"github.com/morezero/components/pkg/events"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/rpc"
)

// Locators of the stock components created by DefaultFactory.
var (
	SlogLoggerLocator         = locator.New("morezero", "logger", "slog", "*", "1.0")
	PrometheusCountersLocator = locator.New("morezero", "counters", "prometheus", "*", "1.0")
	OTelTracerLocator         = locator.New("morezero", "tracer", "otel", "*", "1.0")
	MemoryDiscoveryLocator    = locator.New("morezero", "discovery", "memory", "*", "1.0")
	NATSDiscoveryLocator      = locator.New("morezero", "discovery", "nats", "*", "1.0")
	GRPCEndpointLocator       = locator.New("morezero", "endpoint", "grpc", "*", "1.0")
	NATSEventsLocator         = locator.New("morezero", "events", "nats", "*", "1.0")
	NoOpEventsLocator         = locator.New("morezero", "events", "noop", "*", "1.0")
)

// DefaultFactory creates the stock observability, discovery, endpoint and
// event publisher components.
func DefaultFactory() *build.ComponentFactory {
	f := build.NewComponentFactory()
	f.RegisterValue(SlogLoggerLocator, func() any { return observe.NewSlogLogger() })
	f.RegisterValue(PrometheusCountersLocator, func() any { return observe.NewPrometheusCounters() })
	f.RegisterValue(OTelTracerLocator, func() any { return observe.NewOTelTracer() })
	f.RegisterValue(MemoryDiscoveryLocator, func() any { return discovery.NewMemoryDiscovery() })
	f.RegisterValue(NATSDiscoveryLocator, func() any { return discovery.NewNATSDiscovery() })
	f.RegisterValue(GRPCEndpointLocator, func() any { return rpc.NewEndpoint() })
	f.RegisterValue(NATSEventsLocator, func() any { return events.NewNATSPublisher() })
	f.RegisterValue(NoOpEventsLocator, func() any { return events.NewNoOpPublisher() })
	return f
}
