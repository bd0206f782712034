// Package locator implements the five-field component descriptor group:type:kind:name:version.
package locator

import (
	"fmt"
	"strings"

	"github.com/morezero/components/pkg/apperr"
)

// Wildcard is the token used for an unset field.
const Wildcard = "*"

// Locator identifies a component by group, type, kind, name and version.
// An empty field is unset and matches anything.
type Locator struct {
	group   string
	typ     string
	kind    string
	name    string
	version string
}

// New creates a Locator. "*" and "" both mean unset.
func New(group, typ, kind, name, version string) Locator {
	return Locator{
		group:   normalize(group),
		typ:     normalize(typ),
		kind:    normalize(kind),
		name:    normalize(name),
		version: normalize(version),
	}
}

// Parse reads a locator from its colon-joined form.
func Parse(s string) (Locator, error) {
	tokens := strings.Split(s, ":")
	if s == "" || len(tokens) != 5 {
		return Locator{}, apperr.NewConfigError("", "BAD_LOCATOR",
			fmt.Sprintf("Locator %q must be in format 'group:type:kind:name:version'", s)).
			WithDetails("locator", s)
	}
	return New(tokens[0], tokens[1], tokens[2], tokens[3], tokens[4]), nil
}

// MustParse is Parse that panics on malformed input.
func MustParse(s string) Locator {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Group, Type, Kind, Name and Version return the fields. Unset fields are "".
func (l Locator) Group() string   { return l.group }
func (l Locator) Type() string    { return l.typ }
func (l Locator) Kind() string    { return l.kind }
func (l Locator) Name() string    { return l.name }
func (l Locator) Version() string { return l.version }

// WithVersion returns a copy with the version replaced.
func (l Locator) WithVersion(version string) Locator {
	l.version = normalize(version)
	return l
}

// WithName returns a copy with the name replaced.
func (l Locator) WithName(name string) Locator {
	l.name = normalize(name)
	return l
}

// IsComplete reports whether every field is set.
func (l Locator) IsComplete() bool {
	return l.group != "" && l.typ != "" && l.kind != "" && l.name != "" && l.version != ""
}

// IsEmpty reports whether every field is unset.
func (l Locator) IsEmpty() bool {
	return l == Locator{}
}

// Match is a partial match: a field passes when either side is unset or both are equal.
func (l Locator) Match(other Locator) bool {
	return matchField(l.group, other.group) &&
		matchField(l.typ, other.typ) &&
		matchField(l.kind, other.kind) &&
		matchField(l.name, other.name) &&
		matchField(l.version, other.version)
}

// ExactMatch requires both sides to agree on set/unset status and value for every field.
func (l Locator) ExactMatch(other Locator) bool {
	return l == other
}

// String joins the fields with ':' using '*' for unset ones.
func (l Locator) String() string {
	return strings.Join([]string{
		orWildcard(l.group),
		orWildcard(l.typ),
		orWildcard(l.kind),
		orWildcard(l.name),
		orWildcard(l.version),
	}, ":")
}

// MarshalText implements encoding.TextMarshaler.
func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Locator) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func normalize(v string) string {
	if v == Wildcard {
		return ""
	}
	return v
}

func orWildcard(v string) string {
	if v == "" {
		return Wildcard
	}
	return v
}

func matchField(a, b string) bool {
	return a == "" || b == "" || a == b
}
