package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/application"
	domoutbox "github.com/Zhima-Mochi/stock-ledger/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	stockService     = "stock-service"
	useCaseDeduct    = "stock.deduct"
	spanPrefix       = "UC."
	publishPeer      = "outbox"
	publishEndpoint  = "stock.record_created"
	publishTimeout   = 300 * time.Millisecond
	remainingTimeout = 200 * time.Millisecond
)

type DeductCommand struct {
	ProductID string
	Amount    int64
	UserID    string
	OrderID   string
	Scene     string
	ExtInfo   string
	Remark    string
	// RecordTTL overrides the configured record lifetime when positive.
	RecordTTL time.Duration
}

type DeductOutcome struct {
	Result   domain.DeductResult
	RecordID string
	// RemainingStock is read after a successful deduction and may already be stale. Nil if the read failed.
	RemainingStock *int64
}

func (o *DeductOutcome) Succeeded() bool { return o != nil && o.Result == domain.DeductSucceeded }

// DeductStockUseCase performs one atomic deduction and hands the new record to the archiver.
type DeductStockUseCase struct {
	ledger    domain.Ledger
	ids       application.IDGenerator
	publisher domoutbox.Publisher
	recordTTL time.Duration
	tracer    observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	deductions   observability.Counter   // stock_deductions_total{outcome}
	publishCalls observability.PeerRecorder
}

var _ application.UseCase[DeductCommand, *DeductOutcome] = (*DeductStockUseCase)(nil)

func NewDeductStockUseCase(
	ledger domain.Ledger,
	ids application.IDGenerator,
	publisher domoutbox.Publisher,
	recordTTL time.Duration,
	tel observability.Observability,
) *DeductStockUseCase {
	if recordTTL <= 0 {
		recordTTL = domain.DefaultRecordTTL
	}
	logger, tracer, metrics := observability.Resolve(tel)
	return &DeductStockUseCase{
		ledger:       ledger,
		ids:          ids,
		publisher:    publisher,
		recordTTL:    recordTTL,
		tracer:       tracer,
		log:          logger.With(observability.F("service", stockService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		deductions:   metrics.Counter(observability.MStockDeductions),
		publishCalls: observability.NewPeerRecorder(tel, publishPeer),
	}
}

// Execute never retries. A returned error wraps domain.ErrSystem and means the outcome is unknown:
// the deduction may or may not have been applied.
func (uc *DeductStockUseCase) Execute(ctx context.Context, cmd DeductCommand) (_ *DeductOutcome, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseDeduct),
		observability.F("product_id", cmd.ProductID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"DeductStock",
		attribute.String("use_case", useCaseDeduct),
		attribute.String("stock.product_id", cmd.ProductID),
		attribute.Int64("stock.amount", cmd.Amount),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var (
		recordID   string
		publishErr error
	)

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseDeduct),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseDeduct))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("amount", cmd.Amount),
		}
		if recordID != "" {
			fields = append(fields, observability.F("record_id", recordID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if strings.TrimSpace(cmd.ProductID) == "" {
		outcome, statusText = "error", "PRODUCT_ID_REQUIRED"
		return nil, application.Validation("product id is required")
	}

	// record ids are never caller-supplied
	recordID = uc.ids.NewID()
	rec, derr := domain.NewDeductRecord(cmd.ProductID, cmd.Amount, domain.Metadata{
		RecordID: recordID,
		UserID:   cmd.UserID,
		OrderID:  cmd.OrderID,
		Scene:    cmd.Scene,
		ExtInfo:  cmd.ExtInfo,
		Remark:   cmd.Remark,
	})
	if derr != nil {
		outcome, statusText = "error", "RECORD_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("stock: construct record: %w", derr)
	}

	ttl := cmd.RecordTTL
	if ttl <= 0 {
		ttl = uc.recordTTL
	}

	res, lerr := uc.ledger.Deduct(ctx, rec, ttl)
	if lerr != nil {
		outcome, statusText = "error", "LEDGER_FAILURE"
		uc.deductions.Add(1, observability.L("outcome", "system_error"))
		return nil, domain.AsSystemError(lerr)
	}
	uc.deductions.Add(1, observability.L("outcome", res.String()))
	span.SetAttributes(attribute.String("stock.result", res.String()))

	out := &DeductOutcome{Result: res, RecordID: recordID}
	if res != domain.DeductSucceeded {
		outcome, statusText = "rejected", strings.ToUpper(res.String())
		return out, nil
	}

	out.RemainingStock = uc.remaining(ctx, cmd.ProductID, logger)

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		pubStart := time.Now()
		publishErr = uc.publisher.Publish(pubCtx, domain.NewRecordCreatedEvent(cmd.ProductID, recordID, cmd.Amount))
		cancel()
		uc.publishCalls.Observe(publishEndpoint, pubStart, publishErr)
		if publishErr != nil {
			statusText = "EVENT_PUBLISH_FAILED"
		}
	}

	span.AddEvent("stock.deducted", trace.WithAttributes(attribute.String("stock.record_id", recordID)))
	return out, nil
}

func (uc *DeductStockUseCase) remaining(ctx context.Context, productID string, logger observability.Logger) *int64 {
	rctx, cancel := context.WithTimeout(ctx, remainingTimeout)
	defer cancel()

	n, ok, err := uc.ledger.Stock(rctx, productID)
	if err != nil || !ok {
		logger.Warn("stock_remaining_unavailable", observability.F("error", err))
		return nil
	}
	return &n
}
