package observe

// Set bundles the collaborators injected into components at wiring time.
type Set struct {
	Logger   *CompositeLogger
	Counters Counters
	Tracer   Tracer
}

// Instrumentable is implemented by components that accept an observability Set.
type Instrumentable interface {
	SetObservability(set Set)
}

// NewSet builds a Set whose members fan out to the given collaborators.
func NewSet(loggers []Logger, counters []Counters, tracers []Tracer) Set {
	return Set{
		Logger:   NewCompositeLogger(loggers...),
		Counters: NewCompositeCounters(counters...),
		Tracer:   NewCompositeTracer(tracers...),
	}
}

// NullSet returns a Set that discards everything.
func NullSet() Set {
	return NewSet(nil, nil, nil)
}

// OrNull returns s with missing members replaced by discarding ones.
func (s Set) OrNull() Set {
	if s.Logger == nil {
		s.Logger = NewCompositeLogger()
	}
	if s.Counters == nil {
		s.Counters = NewNullCounters()
	}
	if s.Tracer == nil {
		s.Tracer = NewNullTracer()
	}
	return s
}
