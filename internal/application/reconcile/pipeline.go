package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/application"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	reconcileService = "reconcile-service"
	spanPrefix       = "UC."

	modeSingle = "single"
	modeBatch  = "batch"
)

// Pipeline moves records from the fast store into the durable archive and drives their lifecycle there.
type Pipeline struct {
	records    domain.RecordStore
	archive    domain.Archive
	offlineTTL time.Duration
	now        func() time.Time

	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	archived     observability.Counter   // stock_records_archived_total{mode,outcome}
}

type Option func(*Pipeline)

// WithClock replaces time.Now for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(records domain.RecordStore, archive domain.Archive, offlineTTL time.Duration, tel observability.Observability, opts ...Option) *Pipeline {
	if offlineTTL <= 0 {
		offlineTTL = domain.OfflineRecordTTL
	}
	logger, tracer, metrics := observability.Resolve(tel)
	p := &Pipeline{
		records:      records,
		archive:      archive,
		offlineTTL:   offlineTTL,
		now:          time.Now,
		tracer:       tracer,
		log:          logger.With(observability.F("service", reconcileService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		archived:     metrics.Counter(observability.MRecordsArchived),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OfflineResult summarises ProcessOffline.
type OfflineResult struct {
	Persisted int
	Expired   int
}

// PersistOne copies a single record into the archive. Every failure is logged and swallowed;
// PersistAll is the recovery path for anything missed here.
func (p *Pipeline) PersistOne(ctx context.Context, productID, recordID string) {
	var err error
	ctx, logger, done := p.begin(ctx, "reconcile.persist_one",
		observability.F("product_id", productID),
		observability.F("record_id", recordID),
	)
	defer func() { done(err) }()

	rec, err := p.records.Get(ctx, productID, recordID)
	if err != nil {
		p.archived.Add(1, observability.L("mode", modeSingle), observability.L("outcome", "error"))
		return
	}
	if rec == nil {
		logger.Warn("stock_record_missing")
		p.archived.Add(1, observability.L("mode", modeSingle), observability.L("outcome", "missing"))
		return
	}
	if err = p.archive.Insert(ctx, rec); err != nil {
		p.archived.Add(1, observability.L("mode", modeSingle), observability.L("outcome", "error"))
		return
	}
	p.archived.Add(1, observability.L("mode", modeSingle), observability.L("outcome", "success"))
	logger.Info("stock_record_persisted")
}

// PersistAll archives every live record of the product in one transaction and returns how many
// records were submitted. Records already archived are kept as they are.
func (p *Pipeline) PersistAll(ctx context.Context, productID string) (n int, err error) {
	ctx, logger, done := p.begin(ctx, "reconcile.persist_all", observability.F("product_id", productID))
	defer func() { done(err) }()

	if err = requireProduct(productID); err != nil {
		return 0, err
	}

	recs, err := p.liveRecords(ctx, productID)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	inserted, err := p.archive.InsertBatch(ctx, recs)
	if err != nil {
		p.archived.Add(float64(len(recs)), observability.L("mode", modeBatch), observability.L("outcome", "error"))
		return 0, fmt.Errorf("reconcile: archive %s: %w", productID, err)
	}
	p.archived.Add(float64(len(recs)), observability.L("mode", modeBatch), observability.L("outcome", "success"))
	logger.Info("stock_records_persisted",
		observability.F("submitted", len(recs)),
		observability.F("inserted", inserted),
	)
	return len(recs), nil
}

func (p *Pipeline) liveRecords(ctx context.Context, productID string) ([]*domain.Record, error) {
	ids, err := p.records.ListIDs(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list ids %s: %w", productID, err)
	}
	recs := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := p.records.Get(ctx, productID, id)
		if err != nil {
			return nil, fmt.Errorf("reconcile: read record %s: %w", id, err)
		}
		// index members can outlive their record
		if rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// MarkCompleted moves PENDING records to COMPLETED.
func (p *Pipeline) MarkCompleted(ctx context.Context, recordIDs []string) (n int, err error) {
	ctx, logger, done := p.begin(ctx, "reconcile.mark_completed", observability.F("requested", len(recordIDs)))
	defer func() { done(err) }()

	n, err = p.archive.MarkCompleted(ctx, dedupe(recordIDs), p.now())
	if err != nil {
		return 0, fmt.Errorf("reconcile: mark completed: %w", err)
	}
	logger.Info("stock_records_completed", observability.F("updated", n))
	return n, nil
}

// MarkReconciled moves COMPLETED records to RECONCILED. Calling it again for the same ids changes nothing.
func (p *Pipeline) MarkReconciled(ctx context.Context, recordIDs []string) (n int, err error) {
	ctx, logger, done := p.begin(ctx, "reconcile.mark_reconciled", observability.F("requested", len(recordIDs)))
	defer func() { done(err) }()

	n, err = p.archive.MarkReconciled(ctx, dedupe(recordIDs), p.now())
	if err != nil {
		return 0, fmt.Errorf("reconcile: mark reconciled: %w", err)
	}
	logger.Info("stock_records_reconciled", observability.F("updated", n))
	return n, nil
}

// PurgeReconciledBefore deletes archived RECONCILED rows older than cutoff. Other statuses are never purged.
func (p *Pipeline) PurgeReconciledBefore(ctx context.Context, cutoff time.Time) (n int, err error) {
	ctx, logger, done := p.begin(ctx, "reconcile.purge", observability.F("cutoff", cutoff.UTC().Format(time.RFC3339)))
	defer func() { done(err) }()

	n, err = p.archive.PurgeReconciledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reconcile: purge: %w", err)
	}
	logger.Info("stock_records_purged", observability.F("deleted", n))
	return n, nil
}

// ProcessOffline archives the product's records and only then shortens their fast-store lifetime.
// If archiving fails nothing is expired.
func (p *Pipeline) ProcessOffline(ctx context.Context, productID string) (res *OfflineResult, err error) {
	ctx, logger, done := p.begin(ctx, "reconcile.process_offline", observability.F("product_id", productID))
	defer func() { done(err) }()

	persisted, err := p.PersistAll(ctx, productID)
	if err != nil {
		return nil, err
	}
	expired, err := p.records.SetExpiry(ctx, productID, p.offlineTTL)
	if err != nil {
		return &OfflineResult{Persisted: persisted}, fmt.Errorf("reconcile: set expiry %s: %w", productID, err)
	}
	logger.Info("product_offline_processed",
		observability.F("persisted", persisted),
		observability.F("expired", expired),
	)
	return &OfflineResult{Persisted: persisted, Expired: expired}, nil
}

// CleanupEmptyIndexes prunes dangling members from every record index and returns how many
// indexes were dropped because nothing was left. A failure on one product does not stop the others.
func (p *Pipeline) CleanupEmptyIndexes(ctx context.Context) (dropped int, err error) {
	ctx, logger, done := p.begin(ctx, "reconcile.cleanup_indexes")
	defer func() { done(err) }()

	products, err := p.records.IndexedProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: list indexes: %w", err)
	}

	var errs []error
	removed := 0
	for _, productID := range products {
		n, gone, perr := p.records.PruneIndex(ctx, productID)
		if perr != nil {
			errs = append(errs, fmt.Errorf("reconcile: prune %s: %w", productID, perr))
			continue
		}
		removed += n
		if gone {
			dropped++
		}
	}
	logger.Info("record_indexes_cleaned",
		observability.F("indexes", len(products)),
		observability.F("members_removed", removed),
		observability.F("indexes_dropped", dropped),
	)
	return dropped, errors.Join(errs...)
}

// PendingReconcile lists archived records waiting to be reconciled.
func (p *Pipeline) PendingReconcile(ctx context.Context, productID string) ([]*domain.Record, error) {
	if err := requireProduct(productID); err != nil {
		return nil, err
	}
	recs, err := p.archive.ListByStatus(ctx, productID, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("reconcile: pending: %w", err)
	}
	return recs, nil
}

// RecordsInRange lists archived records created in [from, to].
func (p *Pipeline) RecordsInRange(ctx context.Context, productID string, from, to time.Time) ([]*domain.Record, error) {
	if err := requireProduct(productID); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, application.Validation("end time is before start time")
	}
	recs, err := p.archive.ListByTimeRange(ctx, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("reconcile: time range: %w", err)
	}
	return recs, nil
}

// begin opens the span and returns a finisher that records the use-case metrics and the use_case_done log.
func (p *Pipeline) begin(ctx context.Context, useCase string, fields ...observability.Field) (context.Context, observability.Logger, func(error)) {
	ctx, logger := logctx.Enrich(ctx, p.log, append([]observability.Field{observability.F("use_case", useCase)}, fields...)...)
	ctx, span := p.tracer.Start(ctx, spanPrefix+useCase, attribute.String("use_case", useCase))
	start := time.Now()

	return ctx, logger, func(err error) {
		lat := time.Since(start).Seconds()
		outcome, status := "success", "OK"
		if err != nil {
			outcome, status = "error", "FAILED"
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()

		p.reqCounter.Add(1, observability.L("use_case", useCase), observability.L("outcome", outcome))
		p.durHistogram.Observe(lat, observability.L("use_case", useCase))

		done := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			done = append(done, observability.F("error", err.Error()))
			logger.Warn("use_case_done", done...)
			return
		}
		logger.Info("use_case_done", done...)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func requireProduct(productID string) error {
	if strings.TrimSpace(productID) == "" {
		return application.Validation("product id is required")
	}
	return nil
}
