package stock

import (
	"context"
	"strings"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/application"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"
)

// Service exposes the plain ledger and record operations that need no use-case orchestration.
type Service struct {
	ledger     domain.Ledger
	records    domain.RecordStore
	offlineTTL time.Duration
	log        observability.Logger
}

func NewService(ledger domain.Ledger, records domain.RecordStore, offlineTTL time.Duration, tel observability.Observability) *Service {
	if offlineTTL <= 0 {
		offlineTTL = domain.OfflineRecordTTL
	}
	logger, _, _ := observability.Resolve(tel)
	return &Service{
		ledger:     ledger,
		records:    records,
		offlineTTL: offlineTTL,
		log:        logger.With(observability.F("service", stockService)),
	}
}

// InitStock overwrites the counter unconditionally. Concurrent deductions may interleave with it.
func (s *Service) InitStock(ctx context.Context, productID string, quantity int64) error {
	if err := requireProduct(productID); err != nil {
		return err
	}
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	if err := s.ledger.SetStock(ctx, productID, quantity); err != nil {
		return domain.AsSystemError(err)
	}
	logctx.FromOr(ctx, s.log).Info("stock_initialized",
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	return nil
}

// CurrentStock reports the counter and whether the product is configured. Zero stock is configured.
func (s *Service) CurrentStock(ctx context.Context, productID string) (int64, bool, error) {
	if err := requireProduct(productID); err != nil {
		return 0, false, err
	}
	n, ok, err := s.ledger.Stock(ctx, productID)
	if err != nil {
		return 0, false, domain.AsSystemError(err)
	}
	return n, ok, nil
}

// GetRecord returns nil when the record is unknown or already expired from the fast store.
func (s *Service) GetRecord(ctx context.Context, productID, recordID string) (*domain.Record, error) {
	if err := requireProduct(productID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(recordID) == "" {
		return nil, application.Validation("record id is required")
	}
	rec, err := s.records.Get(ctx, productID, recordID)
	if err != nil {
		return nil, domain.AsSystemError(err)
	}
	return rec, nil
}

// ListRecordIDs returns the index membership, which may name records that have since expired.
func (s *Service) ListRecordIDs(ctx context.Context, productID string) ([]string, error) {
	if err := requireProduct(productID); err != nil {
		return nil, err
	}
	ids, err := s.records.ListIDs(ctx, productID)
	if err != nil {
		return nil, domain.AsSystemError(err)
	}
	return ids, nil
}

func (s *Service) BatchDeleteRecords(ctx context.Context, productID string, recordIDs []string) (int, error) {
	if err := requireProduct(productID); err != nil {
		return 0, err
	}
	n, err := s.records.BatchDelete(ctx, productID, recordIDs)
	if err != nil {
		return 0, domain.AsSystemError(err)
	}
	logctx.FromOr(ctx, s.log).Info("stock_records_deleted",
		observability.F("product_id", productID),
		observability.F("requested", len(recordIDs)),
		observability.F("deleted", n),
	)
	return n, nil
}

// SetExpiryOnOffline shortens the lifetime of every record of a delisted product.
// It does not archive anything first; use the reconciliation pipeline for that.
func (s *Service) SetExpiryOnOffline(ctx context.Context, productID string) (int, error) {
	if err := requireProduct(productID); err != nil {
		return 0, err
	}
	n, err := s.records.SetExpiry(ctx, productID, s.offlineTTL)
	if err != nil {
		return 0, domain.AsSystemError(err)
	}
	logctx.FromOr(ctx, s.log).Info("stock_records_expiry_set",
		observability.F("product_id", productID),
		observability.F("records", n),
		observability.F("ttl_seconds", int64(s.offlineTTL/time.Second)),
	)
	return n, nil
}

func requireProduct(productID string) error {
	if strings.TrimSpace(productID) == "" {
		return application.Validation("product id is required")
	}
	return nil
}
