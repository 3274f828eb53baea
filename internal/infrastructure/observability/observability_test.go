package observability

import (
	"testing"

	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToNop(t *testing.T) {
	tel := New(nil, nil, nil, nil)

	assert.NotNil(t, tel.Logger())
	assert.NotNil(t, tel.Tracer())
	assert.NotPanics(t, func() {
		tel.Metrics().Counter(observability.MStockDeductions).Add(1)
		tel.Metrics().Histogram(observability.MUsecaseDuration).Observe(1)
	})
}

func TestNewWithRegistryExposesInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := NewWithRegistry(nil, nil, prometrics.New("", "", reg))

	tel.Metrics().Counter(observability.MStockDeductions).Add(1, observability.L("outcome", "success"))

	n, err := testutil.GatherAndCount(reg, "stock_deductions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
