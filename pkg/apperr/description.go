package apperr

import (
	"errors"
	"net/http"
)

// Description is the serializable form of an error carried in-band in RPC responses.
type Description struct {
	Category   string            `json:"category"`
	Code       string            `json:"code"`
	TraceID    string            `json:"trace_id,omitempty"`
	Status     int               `json:"status"`
	Message    string            `json:"message"`
	Cause      string            `json:"cause,omitempty"`
	StackTrace string            `json:"stack_trace,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Describe converts any error into a Description. Errors outside the taxonomy
// become Unknown with code UNKNOWN.
func Describe(err error) *Description {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		d := &Description{
			Category:   string(e.Category),
			Code:       e.Code,
			TraceID:    e.TraceID,
			Status:     e.Status,
			Message:    e.Message,
			StackTrace: e.Stack,
		}
		if e.Cause != nil {
			d.Cause = e.Cause.Error()
		}
		if len(e.Details) > 0 {
			d.Details = make(map[string]string, len(e.Details))
			for k, v := range e.Details {
				d.Details[k] = v
			}
		}
		return d
	}
	d := &Description{
		Category: string(CategoryUnknown),
		Code:     "UNKNOWN",
		Status:   http.StatusInternalServerError,
		Message:  err.Error(),
	}
	if cause := errors.Unwrap(err); cause != nil {
		d.Cause = cause.Error()
	}
	return d
}

// ToError rebuilds an *Error from its description.
func (d *Description) ToError() *Error {
	if d == nil {
		return nil
	}
	e := &Error{
		Category: Category(d.Category),
		Code:     d.Code,
		Message:  d.Message,
		TraceID:  d.TraceID,
		Status:   d.Status,
		Stack:    d.StackTrace,
	}
	if e.Category == "" {
		e.Category = CategoryUnknown
	}
	if e.Status == 0 {
		e.Status = statusFor(e.Category)
	}
	if d.Cause != "" {
		e.Cause = errors.New(d.Cause)
	}
	if len(d.Details) > 0 {
		e.Details = make(map[string]string, len(d.Details))
		for k, v := range d.Details {
			e.Details[k] = v
		}
	}
	return e
}
