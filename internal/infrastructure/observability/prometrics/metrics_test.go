package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("", "", reg)

	c1 := r.Counter("stock_deductions_total", "Deductions by outcome.", "outcome")
	c2 := r.Counter("stock_deductions_total", "Deductions by outcome.", "outcome")
	c1.Add(1, observability.L("outcome", "success"))
	c2.Bind(observability.L("outcome", "success")).Add(2)

	n, err := testutil.GatherAndCount(reg, "stock_deductions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.(*registry).counters["stock_deductions_total"].v.WithLabelValues("success")))
}

func TestHistogramDefaultsBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("ledger", "", reg)

	h := r.Histogram("usecase_duration_seconds", "Use case latency.", nil, "use_case")
	h.Observe(0.02, observability.L("use_case", "stock.deduct"))
	h.Bind(observability.L("use_case", "stock.deduct")).Observe(0.03)

	n, err := testutil.GatherAndCount(reg, "ledger_usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPartialLabelsDoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("", "", reg)

	c := r.Counter("external_requests_total", "External calls.", "peer", "endpoint", "outcome")
	assert.NotPanics(t, func() {
		c.Add(1, observability.L("peer", "redis"), observability.L("bogus", "x"))
	})

	vec := r.(*registry).counters["external_requests_total"].v
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("redis", "", "")))
}

func TestSharedRegistererReusesCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New("", "", reg).Counter("usecase_requests_total", "Use cases.", "use_case", "outcome")
	b := New("", "", reg).Counter("usecase_requests_total", "Use cases.", "use_case", "outcome")

	a.Add(1, observability.L("use_case", "stock.deduct"), observability.L("outcome", "success"))
	b.Add(1, observability.L("use_case", "stock.deduct"), observability.L("outcome", "success"))

	n, err := testutil.GatherAndCount(reg, "usecase_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
