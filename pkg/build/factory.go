// Package build creates components from locators through a chain of factories.
package build

import (
	"fmt"
	"runtime/debug"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/locator"
)

// Factory builds components for the locators it knows.
type Factory interface {
	// CanCreate returns the registered locator that matches loc, without building anything.
	CanCreate(loc locator.Locator) (locator.Locator, bool)
	// Create builds a component for loc.
	Create(loc locator.Locator) (any, error)
}

// BuilderFunc builds a component for the requested locator.
type BuilderFunc func(loc locator.Locator) (any, error)

type registration struct {
	locator locator.Locator
	builder BuilderFunc
}

// ComponentFactory is a Factory backed by a table of locator/builder pairs.
// Later registrations take precedence over earlier ones that also match.
type ComponentFactory struct {
	registrations []registration
}

// NewComponentFactory creates an empty factory.
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{}
}

// Register adds a builder for loc.
func (f *ComponentFactory) Register(loc locator.Locator, builder BuilderFunc) {
	f.registrations = append(f.registrations, registration{locator: loc, builder: builder})
}

// RegisterValue adds a builder that ignores the requested locator.
func (f *ComponentFactory) RegisterValue(loc locator.Locator, ctor func() any) {
	f.Register(loc, func(locator.Locator) (any, error) {
		return ctor(), nil
	})
}

// CanCreate implements Factory.
func (f *ComponentFactory) CanCreate(loc locator.Locator) (locator.Locator, bool) {
	if r, ok := f.lookup(loc); ok {
		return r.locator, true
	}
	return locator.Locator{}, false
}

// Create implements Factory. Builder failures and panics become CreateErrors.
func (f *ComponentFactory) Create(loc locator.Locator) (component any, err error) {
	r, ok := f.lookup(loc)
	if !ok {
		return nil, apperr.NewCreateError("", loc)
	}

	defer func() {
		if rec := recover(); rec != nil {
			component = nil
			err = apperr.NewCreateError("", loc).
				WithCause(fmt.Errorf("panic: %v", rec)).
				WithStack(string(debug.Stack()))
		}
	}()

	component, err = r.builder(loc)
	if err != nil {
		return nil, wrapCreateError(loc, err)
	}
	if component == nil {
		return nil, apperr.NewCreateError("", loc).WithDetails("reason", "builder returned nil")
	}
	return component, nil
}

func (f *ComponentFactory) lookup(loc locator.Locator) (registration, bool) {
	for i := len(f.registrations) - 1; i >= 0; i-- {
		if f.registrations[i].locator.Match(loc) {
			return f.registrations[i], true
		}
	}
	return registration{}, false
}

func wrapCreateError(loc locator.Locator, err error) error {
	if e, ok := apperr.As(err); ok && e.Code == "CANNOT_CREATE" {
		return err
	}
	return apperr.NewCreateError("", loc).WithCause(err)
}
