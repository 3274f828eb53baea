package observability

import (
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

type registeredMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m *registeredMetrics) Counter(name observability.MetricKey) observability.Counter {
	if m == nil || m.counters == nil {
		return observability.NopCounter()
	}
	if c, ok := m.counters[name]; ok && c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m *registeredMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if m == nil || m.histograms == nil {
		return observability.NopHistogram()
	}
	if h, ok := m.histograms[name]; ok && h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New assembles an Observability provider backed by the supplied tracer, logger, and metric instruments.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	var metrics observability.Metrics = observability.NopMetrics()
	if len(counters) > 0 || len(histograms) > 0 {
		m := &registeredMetrics{
			counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
			histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
		}
		for k, v := range counters {
			if v == nil {
				continue
			}
			m.counters[k] = v
		}
		for k, v := range histograms {
			if v == nil {
				continue
			}
			m.histograms[k] = v
		}
		metrics = m
	}

	return &provider{
		tracer:  tracer,
		logger:  logger,
		metrics: metrics,
	}
}

// NewWithRegistry registers every instrument the service emits on reg and assembles the provider.
func NewWithRegistry(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) observability.Observability {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests:  reg.Counter(string(observability.MUsecaseRequests), "Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests:     reg.Counter(string(observability.MHTTPRequests), "Total number of HTTP requests.", "method", "route", "status"),
		observability.MExternalRequests: reg.Counter(string(observability.MExternalRequests), "Calls made to the fast store and the archive.", "peer", "endpoint", "outcome"),
		observability.MStockDeductions:  reg.Counter(string(observability.MStockDeductions), "Stock deductions by outcome.", "outcome"),
		observability.MTokenValidations: reg.Counter(string(observability.MTokenValidations), "Submit token validations by result.", "scene", "result"),
		observability.MRecordsArchived:  reg.Counter(string(observability.MRecordsArchived), "Stock records copied to the archive.", "mode", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration:         reg.Histogram(string(observability.MUsecaseDuration), "Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration:     reg.Histogram(string(observability.MHTTPRequestDuration), "Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
		observability.MExternalRequestDuration: reg.Histogram(string(observability.MExternalRequestDuration), "Duration of external calls in seconds.", nil, "peer", "endpoint"),
	}
	return New(tracer, logger, counters, histograms)
}

func (p *provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *provider) Logger() observability.Logger {
	return p.logger
}

func (p *provider) Metrics() observability.Metrics {
	if p.metrics == nil {
		return observability.NopMetrics()
	}
	return p.metrics
}
