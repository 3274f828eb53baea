package bootstrap

import (
	"context"
	"testing"
	"time"

	appstock "github.com/Zhima-Mochi/stock-ledger/internal/application/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/config"
	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(addr string) *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{Addr: addr},
		Ledger: config.LedgerConfig{
			RecordTTL:        time.Hour,
			OfflineRecordTTL: time.Minute,
			TokenTTL:         time.Minute,
		},
	}
}

func TestBuildArchivesDeductionsThroughTheBus(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := Build(ctx, testConfig(mr.Addr()), nil)
	require.NoError(t, err)
	s.Start(ctx)

	require.NoError(t, s.Stock.InitStock(ctx, "p1", 2))
	out, err := s.Deduct.Execute(ctx, appstock.DeductCommand{ProductID: "p1", Amount: 1})
	require.NoError(t, err)
	require.True(t, out.Succeeded())
	assert.Equal(t, time.Hour, mr.TTL("stock_record:p1:"+out.RecordID))

	// Close drains the queue, so the record has been archived once it returns.
	s.Close(ctx)

	recs, err := s.Archive.ListByStatus(ctx, "p1", stock.StatusPending)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.RecordID, recs[0].RecordID)
}

func TestBuildFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Build(context.Background(), testConfig(addr), nil)
	assert.Error(t, err)
}
