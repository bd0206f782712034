package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/morezero/components/pkg/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Schema validates a parameter bag before a command runs.
type Schema interface {
	Validate(params Parameters) error
}

// StructSchema decodes the bag into T and checks its validate tags.
type StructSchema[T any] struct{}

// NewStructSchema creates a schema for T.
func NewStructSchema[T any]() StructSchema[T] {
	return StructSchema[T]{}
}

// Validate implements Schema.
func (StructSchema[T]) Validate(params Parameters) error {
	var v T
	if err := params.DecodeAll(&v); err != nil {
		return err
	}
	if err := validate.Struct(&v); err != nil {
		return validationError(err)
	}
	return nil
}

// RequiredSchema checks that a fixed set of keys is present and not null.
type RequiredSchema []string

// Validate implements Schema.
func (s RequiredSchema) Validate(params Parameters) error {
	var missing []string
	for _, key := range s {
		if v, ok := params[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperr.NewBadRequestError("", "INVALID_DATA", "Missing required parameters").
			WithDetails("missing", strings.Join(missing, ","))
	}
	return nil
}

func validationError(err error) error {
	e := apperr.NewBadRequestError("", "INVALID_DATA", "Parameters failed validation").WithCause(err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			e.WithDetails(fe.Namespace(), fmt.Sprintf("%s %s", fe.Tag(), fe.Param()))
		}
	}
	return e
}
