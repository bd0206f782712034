package refer

import (
	"fmt"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
)

// DependenciesSection is the configuration section read by DependencyResolver.Configure.
const DependenciesSection = "dependencies"

// DependencyResolver maps dependency names to locators and resolves them against a Referencer.
//
// An unknown name is a configuration problem. A known name whose locator matches
// nothing is a reference problem. The two produce different error categories.
type DependencyResolver struct {
	dependencies map[string]locator.Locator
	refs         Referencer
}

// NewDependencyResolver creates an empty resolver.
func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{dependencies: map[string]locator.Locator{}}
}

// NewDependencyResolverFromTuples creates a resolver with alternating name/locator defaults.
// Locators may be given as locator.Locator or as strings.
func NewDependencyResolverFromTuples(tuples ...any) (*DependencyResolver, error) {
	r := NewDependencyResolver()
	for i := 0; i+1 < len(tuples); i += 2 {
		name := fmt.Sprint(tuples[i])
		switch v := tuples[i+1].(type) {
		case locator.Locator:
			r.Put(name, v)
		case string:
			loc, err := locator.Parse(v)
			if err != nil {
				return nil, err
			}
			r.Put(name, loc)
		default:
			return nil, apperr.NewConfigError("", "BAD_DEPENDENCY", fmt.Sprintf("Dependency %s must be a locator", name)).
				WithDetails("name", name)
		}
	}
	return r, nil
}

// Configure reads dependencies.<name> = <locator> entries.
func (r *DependencyResolver) Configure(params config.Params) error {
	for name, value := range params.Section(DependenciesSection) {
		loc, err := locator.Parse(value)
		if err != nil {
			return err
		}
		r.dependencies[name] = loc
	}
	return nil
}

// Put registers or overrides a dependency. The last write wins.
func (r *DependencyResolver) Put(name string, loc locator.Locator) {
	r.dependencies[name] = loc
}

// Locate returns the locator registered under name.
func (r *DependencyResolver) Locate(name string) (locator.Locator, bool) {
	loc, ok := r.dependencies[name]
	return loc, ok
}

// SetReferences sets the store dependencies are resolved against.
func (r *DependencyResolver) SetReferences(refs Referencer) error {
	r.refs = refs
	return nil
}

// GetOneOptional returns the newest component for name, or nil when the name is
// unknown or nothing matches.
func (r *DependencyResolver) GetOneOptional(name string) any {
	loc, ok := r.dependencies[name]
	if !ok || r.refs == nil {
		return nil
	}
	return r.refs.GetOneOptional(loc)
}

// GetOneRequired returns the newest component for name.
func (r *DependencyResolver) GetOneRequired(name string) (any, error) {
	loc, err := r.locateRequired(name)
	if err != nil {
		return nil, err
	}
	return r.refs.GetOneRequired(loc)
}

// GetOptional returns every component for name, newest first.
func (r *DependencyResolver) GetOptional(name string) []any {
	loc, ok := r.dependencies[name]
	if !ok || r.refs == nil {
		return nil
	}
	return r.refs.GetOptional(loc)
}

// GetRequired returns every component for name, newest first.
func (r *DependencyResolver) GetRequired(name string) ([]any, error) {
	loc, err := r.locateRequired(name)
	if err != nil {
		return nil, err
	}
	return r.refs.GetRequired(loc)
}

// Find resolves name with the given required flag.
func (r *DependencyResolver) Find(name string, required bool) ([]any, error) {
	if required {
		return r.GetRequired(name)
	}
	return r.GetOptional(name), nil
}

func (r *DependencyResolver) locateRequired(name string) (locator.Locator, error) {
	loc, ok := r.dependencies[name]
	if !ok {
		return locator.Locator{}, apperr.NewConfigError("", "UNKNOWN_DEPENDENCY",
			fmt.Sprintf("Dependency %s was not defined", name)).
			WithDetails("name", name)
	}
	if r.refs == nil {
		return locator.Locator{}, apperr.NewConfigError("", "NO_REFERENCES",
			fmt.Sprintf("References are not set while resolving dependency %s", name)).
			WithDetails("name", name)
	}
	return loc, nil
}
