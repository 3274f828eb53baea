package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerCarriesFixedAndScopedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core), observability.F("service", "stock-ledger"))

	log.With(observability.F("product_id", "sku1")).Warn("stock_deduct_rejected",
		observability.F("error", errors.New("stock: insufficient stock")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "stock_deduct_rejected", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "stock-ledger", fields["service"])
	assert.Equal(t, "sku1", fields["product_id"])
	assert.Equal(t, "stock: insufficient stock", fields["error"])
}

func TestNewWithNilBaseDiscards(t *testing.T) {
	log := New(nil)
	assert.NotPanics(t, func() { log.Info("ignored") })
}
