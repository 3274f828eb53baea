// Package bootstrap assembles the ledger stack from configuration. The HTTP server and the admin
// CLI share it so both drive the same stores with the same lifetimes.
package bootstrap

import (
	"context"
	"fmt"

	appreconcile "github.com/Zhima-Mochi/stock-ledger/internal/application/reconcile"
	appstock "github.com/Zhima-Mochi/stock-ledger/internal/application/stock"
	apptoken "github.com/Zhima-Mochi/stock-ledger/internal/application/token"
	"github.com/Zhima-Mochi/stock-ledger/internal/config"
	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/id"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	workerpresentation "github.com/Zhima-Mochi/stock-ledger/internal/presentation/worker"
	"github.com/redis/go-redis/v9"
)

// Stack is the wired set of stores and services.
type Stack struct {
	Redis    *redis.Client
	Archive  stock.Archive
	Bus      *outbox.Bus
	Stock    *appstock.Service
	Deduct   *appstock.DeductStockUseCase
	Pipeline *appreconcile.Pipeline
	Guard    *apptoken.Guard

	archiver *workerpresentation.Archiver
	log      observability.Logger
	closers  []func()
}

// Build connects to Redis and the archive and wires the services. An empty DATABASE_URL selects the
// in-memory archive. Call Start before serving and Close when done.
func Build(ctx context.Context, cfg *config.Config, tel observability.Observability) (*Stack, error) {
	logger, _, _ := observability.Resolve(tel)
	s := &Stack{log: logger.With(observability.F("component", "bootstrap"))}

	client, err := redisstore.Connect(ctx, redisstore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, err
	}
	s.Redis = client
	s.closers = append(s.closers, func() { _ = client.Close() })

	if cfg.Database.URL == "" {
		s.log.Warn("archive_in_memory", observability.F("reason", "DATABASE_URL is empty"))
		s.Archive = memory.NewArchive()
	} else {
		pool, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				s.Close(ctx)
				return nil, err
			}
		}
		s.Archive = postgres.NewArchive(pool, tel)
	}

	ids := id.NewUUIDGenerator()
	ledger := redisstore.NewLedger(client, tel)
	records := redisstore.NewRecordStore(client, tel)

	s.Bus = outbox.NewBus(tel, outbox.Options{})
	s.Stock = appstock.NewService(ledger, records, cfg.Ledger.OfflineRecordTTL, tel)
	s.Deduct = appstock.NewDeductStockUseCase(ledger, ids, s.Bus, cfg.Ledger.RecordTTL, tel)
	s.Pipeline = appreconcile.NewPipeline(records, s.Archive, cfg.Ledger.OfflineRecordTTL, tel)
	s.Guard = apptoken.NewGuard(redisstore.NewTokenStore(client, tel), ids, cfg.Ledger.TokenTTL, tel)
	s.archiver = workerpresentation.NewArchiver(s.Bus, s.Pipeline, tel)
	return s, nil
}

// Start subscribes the archiver and starts the bus.
func (s *Stack) Start(ctx context.Context) {
	s.archiver.Start()
	s.Bus.Start(ctx)
}

// Close drains the bus and releases connections in reverse order of acquisition.
func (s *Stack) Close(ctx context.Context) {
	if s.Bus != nil {
		s.Bus.Stop(ctx)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// String is used in startup logs.
func (s *Stack) String() string {
	return fmt.Sprintf("redis=%s archive=%T", s.Redis.Options().Addr, s.Archive)
}
