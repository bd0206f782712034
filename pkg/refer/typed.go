package refer

import (
	"fmt"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/locator"
)

// OneRequired returns the newest component matching loc as T.
func OneRequired[T any](refs Referencer, loc locator.Locator) (T, error) {
	var zero T
	c, err := refs.GetOneRequired(loc)
	if err != nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		return zero, typeMismatch(loc, c)
	}
	return v, nil
}

// OneOptional returns the newest component matching loc that is a T.
func OneOptional[T any](refs Referencer, loc locator.Locator) (T, bool) {
	for _, c := range refs.GetOptional(loc) {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Optional returns every component matching loc that is a T, newest first.
func Optional[T any](refs Referencer, loc locator.Locator) []T {
	var out []T
	for _, c := range refs.GetOptional(loc) {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// Required resolves dependency name as T.
func Required[T any](r *DependencyResolver, name string) (T, error) {
	var zero T
	c, err := r.GetOneRequired(name)
	if err != nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		loc, _ := r.Locate(name)
		return zero, typeMismatch(loc, c).WithDetails("name", name)
	}
	return v, nil
}

// Dependency resolves dependency name as T when present.
func Dependency[T any](r *DependencyResolver, name string) (T, bool) {
	for _, c := range r.GetOptional(name) {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func typeMismatch(loc locator.Locator, c any) *apperr.Error {
	e := apperr.NewReferenceError("", loc).WithDetails("type", fmt.Sprintf("%T", c))
	e.Code = "REF_TYPE_MISMATCH"
	return e
}
