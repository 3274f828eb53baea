package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/bootstrap"
	"github.com/Zhima-Mochi/stock-ledger/internal/config"
	obsinfra "github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/stock-ledger/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/stock-ledger/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/stock-ledger/internal/presentation/http"
	"github.com/Zhima-Mochi/stock-ledger/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		zap.NewExample().Fatal("config_load_failed", zap.Error(err))
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.Service.Name,
		Env:     cfg.Service.Env,
		Level:   cfg.Service.LogLevel,
		File:    cfg.Service.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Service.Name, cfg.Service.Version, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		systemLogger.Fatal("tracer_init_failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := obsinfra.NewWithRegistry(
		oteltrace.New(cfg.Service.Name),
		zaplogger.New(baseLogger),
		prometrics.New("", "", reg),
	)

	stack, err := bootstrap.Build(ctx, cfg, tel)
	if err != nil {
		systemLogger.Fatal("bootstrap_failed", zap.Error(err))
	}
	stack.Start(ctx)
	systemLogger.Info("stack_ready", zap.Stringer("stack", stack))

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
		if err != nil {
			systemLogger.Fatal("scheduler_timezone_invalid", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
		}
		jobs = scheduler.New(stack.Pipeline, scheduler.Options{
			Location:         loc,
			PurgeCron:        cfg.Scheduler.PurgeCron,
			PurgeRetention:   cfg.Scheduler.PurgeRetention,
			IndexCleanupCron: cfg.Scheduler.IndexCleanupCron,
			JobTimeout:       cfg.Scheduler.JobTimeout,
		}, tel)
		if err := jobs.Start(); err != nil {
			systemLogger.Fatal("scheduler_start_failed", zap.Error(err))
		}
	}

	router := httppresentation.NewRouter(httppresentation.RouterOptions{
		ServiceName: cfg.Service.Name,
		Stock:       httppresentation.NewStockHandler(stack.Stock, stack.Deduct, stack.Pipeline),
		Token:       httppresentation.NewTokenHandler(stack.Guard),
		Gatherer:    reg,
		Telemetry:   tel,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	if jobs != nil {
		jobs.Stop(shutdownCtx)
	}
	stack.Close(shutdownCtx)
	if err := shutdownTracer(shutdownCtx); err != nil {
		systemLogger.Warn("tracer_shutdown_error", zap.Error(err))
	}
}
