package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/stretchr/testify/assert"
)

type fieldLogger struct {
	observability.Logger
	fields []observability.Field
}

func (l fieldLogger) With(fields ...observability.Field) observability.Logger {
	return fieldLogger{Logger: l.Logger, fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}

func TestFromOr(t *testing.T) {
	fallback := observability.NopLogger()
	assert.Equal(t, fallback, FromOr(context.Background(), fallback))

	scoped := fieldLogger{Logger: observability.NopLogger()}
	ctx := With(context.Background(), scoped)
	assert.Equal(t, scoped, FromOr(ctx, fallback))
}

func TestWithNilLoggerKeepsContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, With(ctx, nil))
	assert.Nil(t, From(ctx))
}

func TestEnrich(t *testing.T) {
	base := fieldLogger{Logger: observability.NopLogger()}
	ctx, logger := Enrich(context.Background(), base, observability.F("product_id", "p1"))
	ctx, _ = Enrich(ctx, base, observability.F("record_id", "r1"))

	got, ok := From(ctx).(fieldLogger)
	assert.True(t, ok)
	assert.Equal(t, []observability.Field{
		observability.F("product_id", "p1"),
		observability.F("record_id", "r1"),
	}, got.fields)
	assert.Len(t, logger.(fieldLogger).fields, 1)
}

func TestEnrichWithoutAnyLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		_, logger := Enrich(context.Background(), nil, observability.F("k", "v"))
		logger.Info("x")
	})
}
