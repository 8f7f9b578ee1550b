package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/config"
	v1 "github.com/planflow/planflow/internal/handler/v1"
	"github.com/planflow/planflow/internal/repository"
	"github.com/planflow/planflow/internal/service"
	"github.com/planflow/planflow/pkg/auth"
	"github.com/planflow/planflow/pkg/database"
	"github.com/planflow/planflow/pkg/logger"
	"github.com/planflow/planflow/pkg/metrics"
	"github.com/planflow/planflow/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("loading config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("building logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("shutting down tracer", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	collector := metrics.NewCollector(cfg.App.Name)
	jwtManager := auth.NewJWTManager(cfg.JWT)

	planStore := repository.NewPlanStore(db)
	catalogStore := repository.NewCatalogStore(db)
	scheduleStore := repository.NewScheduleStore(db)
	invoiceStore := repository.NewInvoiceStore(db)

	spacing := service.NewSpacingEvaluator(scheduleStore, scheduleStore, cfg.Scheduler.DailyBookingCap)

	planHandler := v1.NewPlanHandler(
		service.NewApprovalService(planStore, catalogStore, invoiceStore, log),
		service.NewItemAdditionService(planStore, catalogStore, log),
		service.NewItemUpdateService(planStore, invoiceStore, log),
		service.NewItemDeletionService(planStore, log),
		service.NewItemStatusService(planStore, catalogStore, scheduleStore, log),
		service.NewAutoScheduleService(planStore, scheduleStore, scheduleStore, scheduleStore, scheduleStore, spacing, cfg.Scheduler, log),
		collector,
	)

	router := v1.NewRouter(cfg, log, collector, jwtManager, planHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
