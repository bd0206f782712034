package dispatcher

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/commands"
)

// RateLimit rejects calls when limiter has no token available.
func RateLimit(limiter *rate.Limiter) Interceptor {
	return func(method string, next Handler) Handler {
		return func(ctx context.Context, params commands.Parameters) (any, error) {
			if !limiter.Allow() {
				return nil, apperr.NewBadRequestError(TraceID(ctx), "RATE_LIMITED",
					fmt.Sprintf("Too many calls to %s", method)).
					WithStatus(http.StatusTooManyRequests).
					WithDetails("method", method)
			}
			return next(ctx, params)
		}
	}
}

// RequireTraceID rejects calls without a trace id.
func RequireTraceID() Interceptor {
	return func(method string, next Handler) Handler {
		return func(ctx context.Context, params commands.Parameters) (any, error) {
			if TraceID(ctx) == "" {
				return nil, apperr.NewBadRequestError("", "NO_TRACE_ID",
					fmt.Sprintf("Call to %s has no trace id", method)).
					WithDetails("method", method)
			}
			return next(ctx, params)
		}
	}
}
