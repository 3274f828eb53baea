package prometrics

import (
	"errors"
	"sync"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry creates Prometheus-backed instruments behind the observability ports.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
	namespace  string
	subsystem  string
	reg        prometheus.Registerer
}

// New creates a registry that registers collectors on reg, or on the default registerer when reg is nil.
func New(namespace, subsystem string, reg prometheus.Registerer) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
		namespace:  namespace,
		subsystem:  subsystem,
		reg:        reg,
	}
}

// labelSet maps port labels onto the declared label keys, in order. Missing keys become "" and
// undeclared keys are dropped, so a caller can never make the vec panic.
type labelSet []string

func (ks labelSet) values(ls []observability.Label) []string {
	out := make([]string, len(ks))
	for _, l := range ls {
		for i, k := range ks {
			if k == l.Key {
				out[i] = l.Value
				break
			}
		}
	}
	return out
}

type counter struct {
	v    *prometheus.CounterVec
	keys labelSet
}

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.WithLabelValues(c.keys.values(labels)...).Add(d)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return c.v.WithLabelValues(c.keys.values(labels)...)
}

type histogram struct {
	v    *prometheus.HistogramVec
	keys labelSet
}

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.WithLabelValues(h.keys.values(labels)...).Observe(v)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return h.v.WithLabelValues(h.keys.values(labels)...)
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	c := &counter{v: register(r.reg, cv), keys: labelKeys}
	r.counters[name] = c
	return c
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	h := &histogram{v: register(r.reg, hv), keys: labelKeys}
	r.histograms[name] = h
	return h
}

// register adds c to reg, returning the collector already registered under the same descriptor
// when another Registry got there first.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
