// Package refer stores components under locators and resolves named dependencies against them.
package refer

import (
	"slices"
	"sort"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/locator"
	"github.com/morezero/components/pkg/semver"
)

// Reference binds a locator to a component. The store never owns the component.
type Reference struct {
	Locator   locator.Locator
	Component any
}

// Referencer is the read side of a reference store.
type Referencer interface {
	Find(loc locator.Locator, required bool) ([]any, error)
	GetOneOptional(loc locator.Locator) any
	GetOneRequired(loc locator.Locator) (any, error)
	GetOptional(loc locator.Locator) []any
	GetRequired(loc locator.Locator) ([]any, error)
}

// Referenceable is implemented by components that pull dependencies from a Referencer.
type Referenceable interface {
	SetReferences(refs Referencer) error
}

// Unreferenceable is implemented by components that release dependencies on teardown.
type Unreferenceable interface {
	UnsetReferences()
}

// References is an insertion-ordered list of references. Lookups scan newest first.
// It is not safe for concurrent mutation; populate it during startup and read it afterwards.
type References struct {
	items []Reference
}

// NewReferences creates an empty store.
func NewReferences() *References {
	return &References{}
}

// NewReferencesFromTuples builds a store from alternating locator/component arguments.
func NewReferencesFromTuples(tuples ...any) (*References, error) {
	r := NewReferences()
	for i := 0; i+1 < len(tuples); i += 2 {
		loc, ok := tuples[i].(locator.Locator)
		if !ok {
			return nil, apperr.NewConfigError("", "BAD_TUPLE", "Reference tuples must alternate locator and component").
				WithDetails("index", i)
		}
		if err := r.Put(loc, tuples[i+1]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put appends a reference. The same locator may be bound many times.
func (r *References) Put(loc locator.Locator, component any) error {
	if component == nil {
		return apperr.NewInternalError("", "NULL_COMPONENT", "Component cannot be nil").
			WithDetails("locator", loc)
	}
	r.items = append(r.items, Reference{Locator: loc, Component: component})
	return nil
}

// Remove unbinds the most recent match and returns its component, or nil.
func (r *References) Remove(loc locator.Locator) any {
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Locator.Match(loc) {
			component := r.items[i].Component
			r.items = append(r.items[:i], r.items[i+1:]...)
			return component
		}
	}
	return nil
}

// RemoveAll unbinds every match and returns the components newest first.
func (r *References) RemoveAll(loc locator.Locator) []any {
	var removed []any
	var kept []Reference
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Locator.Match(loc) {
			removed = append(removed, r.items[i].Component)
		} else {
			kept = append(kept, r.items[i])
		}
	}
	slices.Reverse(kept)
	r.items = kept
	return removed
}

// Find collects every matching component newest first. When required is set and
// nothing matches it returns a reference error.
func (r *References) Find(loc locator.Locator, required bool) ([]any, error) {
	var found []any
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Locator.Match(loc) {
			found = append(found, r.items[i].Component)
		}
	}
	if required && len(found) == 0 {
		return nil, apperr.NewReferenceError("", loc)
	}
	return found, nil
}

// GetOneOptional returns the most recently registered match, or nil.
func (r *References) GetOneOptional(loc locator.Locator) any {
	found, _ := r.Find(loc, false)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// GetOneRequired returns the most recently registered match or a reference error.
func (r *References) GetOneRequired(loc locator.Locator) (any, error) {
	found, err := r.Find(loc, true)
	if err != nil {
		return nil, err
	}
	return found[0], nil
}

// GetOptional returns all matches newest first.
func (r *References) GetOptional(loc locator.Locator) []any {
	found, _ := r.Find(loc, false)
	return found
}

// GetRequired returns all matches newest first or a reference error when there are none.
func (r *References) GetRequired(loc locator.Locator) ([]any, error) {
	return r.Find(loc, true)
}

// FindInRange matches on every field except version and keeps components whose
// locator version satisfies versionRange, highest version first.
func (r *References) FindInRange(loc locator.Locator, versionRange string) []any {
	probe := loc.WithVersion("")
	var matches []Reference
	for i := len(r.items) - 1; i >= 0; i-- {
		item := r.items[i]
		if item.Locator.Match(probe) && semver.SatisfiesRange(item.Locator.Version(), versionRange) {
			matches = append(matches, item)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return semver.Compare(matches[i].Locator.Version(), matches[j].Locator.Version()) > 0
	})

	out := make([]any, len(matches))
	for i, m := range matches {
		out[i] = m.Component
	}
	return out
}

// All returns every component newest first.
func (r *References) All() []any {
	out := make([]any, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		out = append(out, r.items[i].Component)
	}
	return out
}

// Locators returns the locators in insertion order.
func (r *References) Locators() []locator.Locator {
	out := make([]locator.Locator, len(r.items))
	for i, item := range r.items {
		out[i] = item.Locator
	}
	return out
}

// Len returns the number of references.
func (r *References) Len() int {
	return len(r.items)
}

// Clear drops every reference.
func (r *References) Clear() {
	r.items = nil
}
