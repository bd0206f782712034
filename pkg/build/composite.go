package build

import (
	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/locator"
)

// CompositeFactory delegates to child factories, newest registered first.
// A factory added later overrides earlier ones for the locators both can build.
type CompositeFactory struct {
	factories []Factory
}

// NewCompositeFactory creates a composite with the given factories in registration order.
func NewCompositeFactory(factories ...Factory) *CompositeFactory {
	c := &CompositeFactory{}
	for _, f := range factories {
		c.Add(f)
	}
	return c
}

// Add registers a child factory.
func (c *CompositeFactory) Add(factory Factory) {
	if factory == nil {
		return
	}
	c.factories = append(c.factories, factory)
}

// Remove unregisters a child factory.
func (c *CompositeFactory) Remove(factory Factory) {
	for i, f := range c.factories {
		if f == factory {
			c.factories = append(c.factories[:i], c.factories[i+1:]...)
			return
		}
	}
}

// Len returns the number of child factories.
func (c *CompositeFactory) Len() int {
	return len(c.factories)
}

// CanCreate probes the children newest first and returns the first matching locator.
func (c *CompositeFactory) CanCreate(loc locator.Locator) (locator.Locator, bool) {
	for i := len(c.factories) - 1; i >= 0; i-- {
		if matched, ok := c.factories[i].CanCreate(loc); ok {
			return matched, true
		}
	}
	return locator.Locator{}, false
}

// Create builds loc with the newest child that can create it.
func (c *CompositeFactory) Create(loc locator.Locator) (any, error) {
	for i := len(c.factories) - 1; i >= 0; i-- {
		f := c.factories[i]
		if _, ok := f.CanCreate(loc); !ok {
			continue
		}
		component, err := f.Create(loc)
		if err != nil {
			return nil, wrapCreateError(loc, err)
		}
		return component, nil
	}
	return nil, apperr.NewCreateError("", loc)
}
