// Package commands defines named commands, the parameter bag they receive and the sets that group them.
package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/morezero/components/pkg/apperr"
)

// Parameters is the named argument bag passed to a command.
type Parameters map[string]any

// NewParameters creates an empty bag.
func NewParameters() Parameters {
	return Parameters{}
}

// ParametersFromTuples builds a bag from alternating key/value arguments.
func ParametersFromTuples(tuples ...any) Parameters {
	p := Parameters{}
	for i := 0; i+1 < len(tuples); i += 2 {
		p[fmt.Sprint(tuples[i])] = tuples[i+1]
	}
	return p
}

// ParametersFromJSON decodes a JSON object into a bag. Empty input yields an empty bag.
func ParametersFromJSON(data []byte) (Parameters, error) {
	p := Parameters{}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Parameters{}
	}
	return p, nil
}

// Has reports whether key is present.
func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Get returns the raw value for key.
func (p Parameters) Get(key string) any {
	return p[key]
}

// GetString returns the value as a string, or "" when missing.
func (p Parameters) GetString(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// GetInt returns the value as an int, or def when missing or not numeric.
func (p Parameters) GetInt(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return def
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// GetBool returns the value as a bool, or def when missing or not boolean.
func (p Parameters) GetBool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Decode converts the value under key into target through JSON.
func (p Parameters) Decode(key string, target any) error {
	v, ok := p[key]
	if !ok || v == nil {
		return apperr.NewBadRequestError("", "MISSING_PARAM", fmt.Sprintf("Parameter %s is required", key)).
			WithDetails("param", key)
	}
	return decodeValue(v, target, key)
}

// DecodeAll converts the whole bag into target through JSON.
func (p Parameters) DecodeAll(target any) error {
	return decodeValue(map[string]any(p), target, "")
}

func decodeValue(v any, target any, key string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperr.NewBadRequestError("", "INVALID_PARAM", "Parameter cannot be encoded").
			WithDetails("param", key).WithCause(err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return apperr.NewBadRequestError("", "INVALID_PARAM", "Parameter has the wrong shape").
			WithDetails("param", key).WithCause(err)
	}
	return nil
}
