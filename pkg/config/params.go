// Package config holds component configuration as a flat map of dotted keys.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Params is a flat map of dotted configuration keys, e.g. "connection.host".
type Params map[string]string

// Configurable is implemented by components that accept Params.
type Configurable interface {
	Configure(params Params) error
}

// NewParams creates an empty Params.
func NewParams() Params {
	return Params{}
}

// FromTuples builds Params from alternating key/value arguments.
func FromTuples(tuples ...any) Params {
	p := Params{}
	for i := 0; i+1 < len(tuples); i += 2 {
		key := fmt.Sprint(tuples[i])
		p[key] = fmt.Sprint(tuples[i+1])
	}
	return p
}

// FromValue flattens a nested map (as decoded from YAML, TOML or JSON) into Params.
func FromValue(value map[string]any) Params {
	p := Params{}
	flatten(p, "", value)
	return p
}

func flatten(p Params, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, item := range v {
			flatten(p, join(prefix, k), item)
		}
	case map[any]any:
		for k, item := range v {
			flatten(p, join(prefix, fmt.Sprint(k)), item)
		}
	case []any:
		for i, item := range v {
			flatten(p, join(prefix, strconv.Itoa(i)), item)
		}
	case []map[string]any:
		for i, item := range v {
			flatten(p, join(prefix, strconv.Itoa(i)), item)
		}
	case nil:
		if prefix != "" {
			p[prefix] = ""
		}
	default:
		if prefix != "" {
			p[prefix] = fmt.Sprint(v)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Keys returns all keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for key and whether it exists.
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// GetString returns the value for key or an empty string.
func (p Params) GetString(key string) string {
	return p[key]
}

// GetStringWithDefault returns the value for key or def when missing or empty.
func (p Params) GetStringWithDefault(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// GetIntWithDefault parses the value for key as an int, returning def on failure.
func (p Params) GetIntWithDefault(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// GetFloatWithDefault parses the value for key as a float64, returning def on failure.
func (p Params) GetFloatWithDefault(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// GetBoolWithDefault parses the value for key as a bool, returning def on failure.
func (p Params) GetBoolWithDefault(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// GetDurationWithDefault parses a Go duration ("5s") or a plain number of milliseconds.
func (p Params) GetDurationWithDefault(key string, def time.Duration) time.Duration {
	v, ok := p[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Section returns the keys under name with the prefix stripped.
func (p Params) Section(name string) Params {
	out := Params{}
	prefix := name + "."
	for k, v := range p {
		if strings.HasPrefix(k, prefix) {
			out[k[len(prefix):]] = v
		}
	}
	return out
}

// SectionNames returns the distinct first key segments that have nested keys.
func (p Params) SectionNames() []string {
	seen := map[string]struct{}{}
	for k := range p {
		if i := strings.IndexByte(k, '.'); i > 0 {
			seen[k[:i]] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddSection returns a copy with section's keys nested under name.
func (p Params) AddSection(name string, section Params) Params {
	out := p.Clone()
	for k, v := range section {
		out[join(name, k)] = v
	}
	return out
}

// Override returns a copy where keys from other replace keys in p.
func (p Params) Override(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SetDefaults returns a copy where keys from defaults fill in missing keys.
func (p Params) SetDefaults(defaults Params) Params {
	out := defaults.Clone()
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
