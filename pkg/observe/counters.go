package observe

import "time"

// Counters records named counts and timings.
type Counters interface {
	IncrementOne(name string)
	Increment(name string, value int)
	BeginTiming(name string) *Timing
}

// Timing measures one interval started by BeginTiming.
type Timing struct {
	start time.Time
	end   func(elapsed time.Duration)
}

// NewTiming starts a timing that reports to end when finished.
func NewTiming(end func(elapsed time.Duration)) *Timing {
	return &Timing{start: time.Now(), end: end}
}

// EndTiming stops the timing and reports the elapsed time.
func (t *Timing) EndTiming() {
	if t == nil || t.end == nil {
		return
	}
	t.end(time.Since(t.start))
}

// NullCounters discards everything.
type NullCounters struct{}

// NewNullCounters creates a NullCounters.
func NewNullCounters() *NullCounters { return &NullCounters{} }

// NullCounters methods do nothing.
func (*NullCounters) IncrementOne(string)        {}
func (*NullCounters) Increment(string, int)      {}
func (*NullCounters) BeginTiming(string) *Timing { return NewTiming(nil) }

// CompositeCounters fans out to a fixed list of counters.
type CompositeCounters struct {
	counters []Counters
}

// NewCompositeCounters creates a composite over counters. Nil entries are skipped.
func NewCompositeCounters(counters ...Counters) *CompositeCounters {
	c := &CompositeCounters{}
	for _, cc := range counters {
		if cc != nil {
			c.counters = append(c.counters, cc)
		}
	}
	return c
}

// IncrementOne forwards to every member.
func (c *CompositeCounters) IncrementOne(name string) {
	c.Increment(name, 1)
}

// Increment forwards to every member.
func (c *CompositeCounters) Increment(name string, value int) {
	for _, cc := range c.counters {
		cc.Increment(name, value)
	}
}

// BeginTiming starts a timing that ends on every member.
func (c *CompositeCounters) BeginTiming(name string) *Timing {
	timings := make([]*Timing, len(c.counters))
	for i, cc := range c.counters {
		timings[i] = cc.BeginTiming(name)
	}
	return NewTiming(func(time.Duration) {
		for _, t := range timings {
			t.EndTiming()
		}
	})
}
