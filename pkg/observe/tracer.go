package observe

import (
	"context"
	"time"
)

// Tracer records operation traces.
type Tracer interface {
	Trace(ctx context.Context, traceID, component, operation string, duration time.Duration)
	Failure(ctx context.Context, traceID, component, operation string, err error, duration time.Duration)
	BeginTrace(ctx context.Context, traceID, component, operation string) *TraceTiming
}

// TraceTiming is an open trace started by BeginTrace.
type TraceTiming struct {
	start     time.Time
	onSuccess func(elapsed time.Duration)
	onFailure func(err error, elapsed time.Duration)
}

// NewTraceTiming starts a trace that reports to the given callbacks.
func NewTraceTiming(onSuccess func(time.Duration), onFailure func(error, time.Duration)) *TraceTiming {
	return &TraceTiming{start: time.Now(), onSuccess: onSuccess, onFailure: onFailure}
}

// EndTrace finishes the trace successfully.
func (t *TraceTiming) EndTrace() {
	if t == nil || t.onSuccess == nil {
		return
	}
	t.onSuccess(time.Since(t.start))
}

// EndFailure finishes the trace with err.
func (t *TraceTiming) EndFailure(err error) {
	if t == nil || t.onFailure == nil {
		return
	}
	t.onFailure(err, time.Since(t.start))
}

// NullTracer discards everything.
type NullTracer struct{}

// NewNullTracer creates a NullTracer.
func NewNullTracer() *NullTracer { return &NullTracer{} }

// NullTracer methods do nothing.
func (*NullTracer) Trace(context.Context, string, string, string, time.Duration) {}

func (*NullTracer) Failure(context.Context, string, string, string, error, time.Duration) {}

func (*NullTracer) BeginTrace(context.Context, string, string, string) *TraceTiming {
	return NewTraceTiming(nil, nil)
}

// CompositeTracer fans out to a fixed list of tracers.
type CompositeTracer struct {
	tracers []Tracer
}

// NewCompositeTracer creates a composite over tracers. Nil entries are skipped.
func NewCompositeTracer(tracers ...Tracer) *CompositeTracer {
	c := &CompositeTracer{}
	for _, t := range tracers {
		if t != nil {
			c.tracers = append(c.tracers, t)
		}
	}
	return c
}

// Trace forwards to every member.
func (c *CompositeTracer) Trace(ctx context.Context, traceID, component, operation string, duration time.Duration) {
	for _, t := range c.tracers {
		t.Trace(ctx, traceID, component, operation, duration)
	}
}

// Failure forwards to every member.
func (c *CompositeTracer) Failure(ctx context.Context, traceID, component, operation string, err error, duration time.Duration) {
	for _, t := range c.tracers {
		t.Failure(ctx, traceID, component, operation, err, duration)
	}
}

// BeginTrace starts a timing that ends on every member.
func (c *CompositeTracer) BeginTrace(ctx context.Context, traceID, component, operation string) *TraceTiming {
	timings := make([]*TraceTiming, len(c.tracers))
	for i, t := range c.tracers {
		timings[i] = t.BeginTrace(ctx, traceID, component, operation)
	}
	return NewTraceTiming(
		func(time.Duration) {
			for _, tt := range timings {
				tt.EndTrace()
			}
		},
		func(err error, _ time.Duration) {
			for _, tt := range timings {
				tt.EndFailure(err)
			}
		},
	)
}
