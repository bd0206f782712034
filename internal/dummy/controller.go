package dummy

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/commands"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/dispatcher"
	"github.com/morezero/components/pkg/events"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/observe"
	"github.com/morezero/components/pkg/refer"
)

// EntityName is the entity reported in change events.
const EntityName = "dummy"

// Controller holds the dummy business logic and exposes it as commands.
//
// Dependencies: "persistence" (required) and "events" (optional).
type Controller struct {
	deps        *refer.DependencyResolver
	persistence Persistence
	publisher   events.Publisher
	obs         observe.Set

	once     sync.Once
	commands *commands.CommandSet
}

// NewController creates a controller with default dependency locators.
func NewController() *Controller {
	deps := refer.NewDependencyResolver()
	deps.Put("persistence", locator.New("dummies", "persistence", "", "", "1.0"))
	deps.Put("events", locator.New("", "events", "", "", ""))
	return &Controller{
		deps:      deps,
		publisher: events.NewNoOpPublisher(),
		obs:       observe.NullSet(),
	}
}

// Configure reads the controller's dependency locators.
func (c *Controller) Configure(params config.Params) error {
	return c.deps.Configure(params)
}

// SetObservability sets the logger and counters used by every command.
func (c *Controller) SetObservability(set observe.Set) {
	c.obs = set.OrNull()
}

// SetReferences resolves the persistence and the optional event publisher.
func (c *Controller) SetReferences(refs refer.Referencer) error {
	if err := c.deps.SetReferences(refs); err != nil {
		return err
	}
	persistence, err := refer.Required[Persistence](c.deps, "persistence")
	if err != nil {
		return err
	}
	c.persistence = persistence
	if publisher, ok := refer.Dependency[events.Publisher](c.deps, "events"); ok {
		c.publisher = publisher
	}
	return nil
}

// UnsetReferences drops the resolved dependencies.
func (c *Controller) UnsetReferences() {
	c.persistence = nil
	c.publisher = events.NewNoOpPublisher()
}

// CommandSet returns the controller's commands, built once.
func (c *Controller) CommandSet() *commands.CommandSet {
	c.once.Do(func() { c.commands = newCommandSet(c) })
	return c.commands
}

// List returns a page of dummies.
func (c *Controller) List(ctx context.Context, traceID string, filter Filter, paging Paging) (*Page, error) {
	return c.persistence.List(ctx, traceID, filter, paging)
}

// GetByID returns a dummy or nil.
func (c *Controller) GetByID(ctx context.Context, traceID, id string) (*Dummy, error) {
	return c.persistence.GetByID(ctx, traceID, id)
}

// Create stores d, generating an id when it has none.
func (c *Controller) Create(ctx context.Context, traceID string, d Dummy) (*Dummy, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	created, err := c.persistence.Create(ctx, traceID, d)
	if err != nil {
		return nil, err
	}
	c.changed(ctx, traceID, events.ActionCreated, created.ID)
	return created, nil
}

// Update replaces a stored dummy. A missing id is a NotFound error.
func (c *Controller) Update(ctx context.Context, traceID string, d Dummy) (*Dummy, error) {
	updated, err := c.persistence.Update(ctx, traceID, d)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NewNotFoundError(traceID, "DUMMY_NOT_FOUND", fmt.Sprintf("Dummy %s was not found", d.ID)).
			WithDetails("id", d.ID)
	}
	c.changed(ctx, traceID, events.ActionUpdated, updated.ID)
	return updated, nil
}

// Delete removes a dummy and returns it, or nil when it did not exist.
func (c *Controller) Delete(ctx context.Context, traceID, id string) (*Dummy, error) {
	deleted, err := c.persistence.DeleteByID(ctx, traceID, id)
	if err != nil || deleted == nil {
		return deleted, err
	}
	c.changed(ctx, traceID, events.ActionDeleted, deleted.ID)
	return deleted, nil
}

func (c *Controller) changed(ctx context.Context, traceID, action, id string) {
	c.obs.Logger.Info(traceID, "dummy %s %s", id, action)
	c.obs.Counters.IncrementOne("dummy." + action)
	if err := c.publisher.PublishChanged(ctx, events.NewChangedEvent(EntityName, action, id, traceID)); err != nil {
		c.obs.Logger.Warn(traceID, "failed to publish %s event for %s: %v", action, id, err)
	}
}

type listArgs struct {
	Filter Filter `json:"filter"`
	Paging Paging `json:"paging"`
}

type dummyArgs struct {
	Dummy Dummy `json:"dummy"`
}

func newCommandSet(c *Controller) *commands.CommandSet {
	set := commands.NewCommandSet()
	set.AddCommands(
		commands.NewCommand("get_dummies", commands.NewStructSchema[listArgs](),
			func(ctx context.Context, p commands.Parameters) (any, error) {
				var args listArgs
				if err := p.DecodeAll(&args); err != nil {
					return nil, err
				}
				return c.List(ctx, dispatcher.TraceID(ctx), args.Filter, args.Paging)
			}),
		commands.NewCommand("get_dummy_by_id", commands.RequiredSchema{"dummy_id"},
			func(ctx context.Context, p commands.Parameters) (any, error) {
				d, err := c.GetByID(ctx, dispatcher.TraceID(ctx), p.GetString("dummy_id"))
				if err != nil || d == nil {
					return nil, err
				}
				return d, nil
			}),
		commands.NewCommand("create_dummy", commands.NewStructSchema[dummyArgs](),
			func(ctx context.Context, p commands.Parameters) (any, error) {
				var args dummyArgs
				if err := p.DecodeAll(&args); err != nil {
					return nil, err
				}
				return c.Create(ctx, dispatcher.TraceID(ctx), args.Dummy)
			}),
		commands.NewCommand("update_dummy", commands.NewStructSchema[dummyArgs](),
			func(ctx context.Context, p commands.Parameters) (any, error) {
				var args dummyArgs
				if err := p.DecodeAll(&args); err != nil {
					return nil, err
				}
				if args.Dummy.ID == "" {
					return nil, apperr.NewBadRequestError(dispatcher.TraceID(ctx), "INVALID_DATA", "Dummy id is required").
						WithDetails("missing", "dummy.id")
				}
				return c.Update(ctx, dispatcher.TraceID(ctx), args.Dummy)
			}),
		commands.NewCommand("delete_dummy", commands.RequiredSchema{"dummy_id"},
			func(ctx context.Context, p commands.Parameters) (any, error) {
				d, err := c.Delete(ctx, dispatcher.TraceID(ctx), p.GetString("dummy_id"))
				if err != nil || d == nil {
					return nil, err
				}
				return d, nil
			}),
		commands.NewCommand("check_trace_id", nil,
			func(ctx context.Context, _ commands.Parameters) (any, error) {
				return dispatcher.TraceID(ctx), nil
			}),
	)
	return set
}
