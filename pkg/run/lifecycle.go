// Package run defines the open/close lifecycle shared by components.
package run

import (
	"context"
	"errors"
)

// Opener is implemented by components that acquire resources when opened.
type Opener interface {
	IsOpen() bool
	Open(ctx context.Context, traceID string) error
}

// Closer is implemented by components that release resources when closed.
type Closer interface {
	Close(ctx context.Context, traceID string) error
}

// OpenAll opens components in order. On failure the ones already opened are closed
// in reverse order and the open error is returned.
func OpenAll(ctx context.Context, traceID string, components []any) error {
	var opened []any
	for _, c := range components {
		o, ok := c.(Opener)
		if !ok {
			continue
		}
		if o.IsOpen() {
			continue
		}
		if err := o.Open(ctx, traceID); err != nil {
			_ = CloseAll(ctx, traceID, opened)
			return err
		}
		opened = append(opened, c)
	}
	return nil
}

// CloseAll closes components in reverse order. Every component is closed even
// when an earlier close fails; the errors are joined.
func CloseAll(ctx context.Context, traceID string, components []any) error {
	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c, ok := components[i].(Closer)
		if !ok {
			continue
		}
		if err := c.Close(ctx, traceID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
