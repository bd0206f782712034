package observe

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/components/pkg/config"
)

// PrometheusCounters records counters and timings on its own Prometheus registry.
// Counter names become the "name" label of two vectors.
type PrometheusCounters struct {
	namespace string
	registry  *prometheus.Registry
	calls     *prometheus.CounterVec
	timings   *prometheus.HistogramVec
}

// NewPrometheusCounters creates counters under the "components" namespace.
func NewPrometheusCounters() *PrometheusCounters {
	c := &PrometheusCounters{namespace: "components"}
	c.init()
	return c
}

// Configure reads namespace. Changing it resets the registry.
func (c *PrometheusCounters) Configure(params config.Params) error {
	ns := params.GetStringWithDefault("namespace", c.namespace)
	if ns != c.namespace {
		c.namespace = ns
		c.init()
	}
	return nil
}

func (c *PrometheusCounters) init() {
	c.registry = prometheus.NewRegistry()
	c.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      "counter_total",
		Help:      "Named counters incremented by components.",
	}, []string{"name"})
	c.timings = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Name:      "timing_seconds",
		Help:      "Named timings recorded by components.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"name"})
	c.registry.MustRegister(c.calls, c.timings)
}

// IncrementOne adds 1 to the named counter.
func (c *PrometheusCounters) IncrementOne(name string) {
	c.Increment(name, 1)
}

// Increment adds value to the named counter.
func (c *PrometheusCounters) Increment(name string, value int) {
	c.calls.WithLabelValues(name).Add(float64(value))
}

// BeginTiming observes the elapsed time in the named histogram when it ends.
func (c *PrometheusCounters) BeginTiming(name string) *Timing {
	return NewTiming(func(elapsed time.Duration) {
		c.timings.WithLabelValues(name).Observe(elapsed.Seconds())
	})
}

// Registry returns the underlying registry.
func (c *PrometheusCounters) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCounters) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Counter returns the counter behind name.
func (c *PrometheusCounters) Counter(name string) prometheus.Counter {
	return c.calls.WithLabelValues(name)
}
