package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/application"
	domain "github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tokenService       = "submit-token-service"
	useCaseGenerate    = "token.generate"
	useCaseValidate    = "token.validate"
	spanPrefix         = "UC."
	validationsUnknown = "system_error"
)

// Guard issues single-use submit tokens and consumes them to reject duplicate submissions.
type Guard struct {
	store domain.Store
	ids   application.IDGenerator
	ttl   time.Duration
	now   func() time.Time

	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	validations  observability.Counter   // submit_token_validations_total{scene,result}
}

func NewGuard(store domain.Store, ids application.IDGenerator, ttl time.Duration, tel observability.Observability) *Guard {
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	logger, tracer, metrics := observability.Resolve(tel)
	return &Guard{
		store:        store,
		ids:          ids,
		ttl:          ttl,
		now:          time.Now,
		tracer:       tracer,
		log:          logger.With(observability.F("service", tokenService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		validations:  metrics.Counter(observability.MTokenValidations),
	}
}

// Generate issues a fresh token for key, replacing any token still live for it.
func (g *Guard) Generate(ctx context.Context, key domain.Key) (_ *domain.Issued, err error) {
	ctx, span := g.tracer.Start(ctx, spanPrefix+"GenerateToken",
		attribute.String("use_case", useCaseGenerate),
		attribute.String("token.scene", key.Scene),
	)
	start := time.Now()
	defer func() { g.finish(ctx, span, useCaseGenerate, key, start, err) }()

	if err = key.Validate(); err != nil {
		return nil, err
	}

	value := g.ids.NewID()
	if err = g.store.Put(ctx, key, value, g.ttl); err != nil {
		return nil, asSystemError(err)
	}
	return &domain.Issued{Token: value, TTL: g.ttl, IssuedAt: g.now().UTC()}, nil
}

// ValidateAndConsume checks presented against the stored token and deletes it on a match, in one
// atomic step. Only the first of several concurrent callers with the right token gets Valid.
// A mismatch leaves the stored token in place.
func (g *Guard) ValidateAndConsume(ctx context.Context, key domain.Key, presented string) (res domain.Result, err error) {
	ctx, span := g.tracer.Start(ctx, spanPrefix+"ValidateToken",
		attribute.String("use_case", useCaseValidate),
		attribute.String("token.scene", key.Scene),
	)
	start := time.Now()
	defer func() {
		result := validationsUnknown
		if err == nil {
			result = res.String()
			span.SetAttributes(attribute.String("token.result", result))
		}
		g.validations.Add(1, observability.L("scene", key.Scene), observability.L("result", result))
		g.finish(ctx, span, useCaseValidate, key, start, err)
	}()

	if err = key.Validate(); err != nil {
		return 0, err
	}
	if presented == "" {
		return domain.NotFoundOrExpired, nil
	}

	res, err = g.store.Consume(ctx, key, presented)
	if err != nil {
		return 0, asSystemError(err)
	}
	return res, nil
}

// Delete drops the token for key and reports whether one existed.
func (g *Guard) Delete(ctx context.Context, key domain.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	ok, err := g.store.Delete(ctx, key)
	if err != nil {
		return false, asSystemError(err)
	}
	logctx.FromOr(ctx, g.log).Info("submit_token_deleted",
		observability.F("scene", key.Scene),
		observability.F("existed", ok),
	)
	return ok, nil
}

func (g *Guard) finish(ctx context.Context, span trace.Span, useCase string, key domain.Key, start time.Time, err error) {
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

	g.reqCounter.Add(1, observability.L("use_case", useCase), observability.L("outcome", outcome))
	g.durHistogram.Observe(lat, observability.L("use_case", useCase))

	fields := []observability.Field{
		observability.F("use_case", useCase),
		observability.F("scene", key.Scene),
		observability.F("outcome", outcome),
		observability.F("latency_seconds", lat),
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logctx.FromOr(ctx, g.log).Info("use_case_done", fields...)
}

func asSystemError(err error) error {
	if errors.Is(err, domain.ErrSystem) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSystem, err)
}
