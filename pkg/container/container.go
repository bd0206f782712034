package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/build"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
	"github.com/morezero/components/pkg/run"
)

const containerLogPrefix = "container:container"

var (
	loggerLocator   = locator.New("", "logger", "", "", "")
	countersLocator = locator.New("", "counters", "", "", "")
	tracerLocator   = locator.New("", "tracer", "", "", "")
)

// Container owns a set of components. Open runs in two phases: every component
// is created, configured and wired before any of them is opened.
type Container struct {
	mu         sync.Mutex
	factories  *build.CompositeFactory
	config     *Config
	prebuilt   []refer.Reference
	refs       *refer.References
	components []any
	obs        observe.Set
	open       bool
}

// New creates a container that can build the stock components.
func New() *Container {
	return &Container{
		factories: build.NewCompositeFactory(DefaultFactory()),
		config:    &Config{},
		refs:      refer.NewReferences(),
		obs:       observe.NullSet(),
	}
}

// AddFactory adds a factory. Factories added later take precedence.
func (c *Container) AddFactory(f build.Factory) {
	c.factories.Add(f)
}

// SetConfig replaces the component list used by the next Open.
func (c *Container) SetConfig(cfg *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
}

// AddComponent registers an already built component. It is wired and opened
// ahead of the configured ones.
func (c *Container) AddComponent(loc locator.Locator, component any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prebuilt = append(c.prebuilt, refer.Reference{Locator: loc, Component: component})
}

// References returns the store components are wired against.
func (c *Container) References() *refer.References {
	return c.refs
}

// Components returns the components in wiring order.
func (c *Container) Components() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.components...)
}

// Observability returns the set injected into components.
func (c *Container) Observability() observe.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obs
}

// IsOpen reports whether Open completed and Close has not run.
func (c *Container) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Open builds, wires and opens every component. Any failure undoes the work
// done so far and leaves the container empty.
func (c *Container) Open(ctx context.Context, traceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return nil
	}

	if err := c.build(traceID); err != nil {
		c.reset()
		return err
	}
	c.obs = c.collectObservability()
	for _, comp := range c.components {
		if inst, ok := comp.(observe.Instrumentable); ok {
			inst.SetObservability(c.obs)
		}
	}
	for _, comp := range c.components {
		if ref, ok := comp.(refer.Referenceable); ok {
			if err := ref.SetReferences(c.refs); err != nil {
				c.unsetReferences()
				c.reset()
				return err
			}
		}
	}
	if err := run.OpenAll(ctx, traceID, c.components); err != nil {
		c.unsetReferences()
		c.reset()
		return err
	}

	c.open = true
	c.obs.Logger.Info(traceID, "container opened with %d components", len(c.components))
	slog.Info(fmt.Sprintf("%s - opened components=%d trace_id=%s", containerLogPrefix, len(c.components), traceID))
	return nil
}

func (c *Container) build(traceID string) error {
	for _, ref := range c.prebuilt {
		if err := c.refs.Put(ref.Locator, ref.Component); err != nil {
			return err
		}
		c.components = append(c.components, ref.Component)
	}
	for _, cc := range c.config.Components {
		comp, err := c.factories.Create(cc.Locator)
		if err != nil {
			return err
		}
		if configurable, ok := comp.(config.Configurable); ok {
			params := cc.Params
			if params == nil {
				params = config.NewParams()
			}
			if err := configurable.Configure(params); err != nil {
				return apperr.NewConfigError(traceID, "CONFIGURE_FAILED",
					fmt.Sprintf("Configuring %s failed", cc.Locator)).
					WithDetails("locator", cc.Locator).
					WithCause(err)
			}
		}
		if err := c.refs.Put(cc.Locator, comp); err != nil {
			return err
		}
		c.components = append(c.components, comp)
	}
	return nil
}

func (c *Container) collectObservability() observe.Set {
	return observe.NewSet(
		refer.Optional[observe.Logger](c.refs, loggerLocator),
		refer.Optional[observe.Counters](c.refs, countersLocator),
		refer.Optional[observe.Tracer](c.refs, tracerLocator),
	)
}

// Close closes components in reverse order, unsets their references and
// empties the container. Close errors are joined.
func (c *Container) Close(ctx context.Context, traceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	err := run.CloseAll(ctx, traceID, c.components)
	c.unsetReferences()
	c.obs.Logger.Info(traceID, "container closed")
	c.reset()
	if err != nil {
		return apperr.NewInternalError(traceID, "CLOSE_FAILED", "Closing components failed").WithCause(err)
	}
	return nil
}

func (c *Container) unsetReferences() {
	for i := len(c.components) - 1; i >= 0; i-- {
		if u, ok := c.components[i].(refer.Unreferenceable); ok {
			u.UnsetReferences()
		}
	}
}

func (c *Container) reset() {
	c.refs.Clear()
	c.components = nil
	c.open = false
	c.obs = observe.NullSet()
}
