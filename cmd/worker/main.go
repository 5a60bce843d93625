package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spasuite/booking-api/pkg/logger"
	"github.com/spasuite/booking-api/pkg/metrics"
	"github.com/spasuite/booking-api/pkg/worker"

	"github.com/spasuite/booking-api/internal/config"
	"github.com/spasuite/booking-api/internal/email"
	"github.com/spasuite/booking-api/internal/repository/postgres"
	ledgerService "github.com/spasuite/booking-api/internal/service/ledger"
	notificationService "github.com/spasuite/booking-api/internal/service/notification"
	"github.com/spasuite/booking-api/internal/sms"
)

func setupHealthCheck(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func setupMetrics(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("Metrics server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	env, err := config.LoadWorkerEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load worker environment")
	}

	level, err := zerolog.ParseLevel(env.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.ZL.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	appMetrics := metrics.New("booking_worker")

	baseRepo := postgres.NewBaseRepository(db)
	txm := &baseRepo
	catalogRepo := postgres.NewCatalogRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	packageRepo := postgres.NewPackageRepository(db)
	voucherRepo := postgres.NewVoucherRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	emailSvc := email.NewSMTPService(cfg.SMTP)
	smsSender := sms.NewGatewaySender(cfg.SMS)

	ledgerSvc := ledgerService.NewService(packageRepo, voucherRepo, catalogRepo, txm, appLogger)
	notificationSvc := notificationService.NewService(
		notificationRepo, reservationRepo, catalogRepo, packageRepo,
		emailSvc, smsSender, appMetrics, appLogger,
		notificationService.Config{
			AlertLookback:  time.Duration(cfg.Scheduler.AlertLookbackDays) * 24 * time.Hour,
			DepletionHours: cfg.Scheduler.DepletionHours,
			ExpiryWindow:   time.Duration(cfg.Scheduler.ExpiryWindowDays) * 24 * time.Hour,
			ReportEmail:    cfg.SMTP.ReportEmail,
		},
	)

	workers := cfg.Queue.Workers
	if env.QueueWorkers > 0 {
		workers = env.QueueWorkers
	}

	dispatcher := worker.NewDispatcher(
		notificationRepo,
		notificationSvc,
		worker.DispatcherConfig{
			Workers:       workers,
			BatchSize:     cfg.Queue.BatchSize,
			PollInterval:  cfg.Queue.PollInterval,
			MaxAttempts:   cfg.Queue.MaxAttempts,
			RetryBaseWait: cfg.Queue.RetryBaseWait,
		},
		appLogger,
		appMetrics,
	)

	scheduler := worker.NewScheduler(
		ledgerSvc,
		notificationSvc,
		worker.SchedulerConfig{
			SweepHour:    cfg.Scheduler.SweepHour,
			ReminderHour: cfg.Scheduler.ReminderHour,
			AlertWeekday: time.Weekday(cfg.Scheduler.AlertWeekday),
		},
		appLogger,
		appMetrics,
	)

	cleanup := worker.NewLogCleanupWorker(
		notificationRepo,
		cfg.Scheduler.LogRetentionDays,
		24*time.Hour,
		appLogger,
	)

	setupHealthCheck(env.HealthPort, appLogger)
	setupMetrics(env.MetricsPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.ZL.Info().Msg("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	wg.Wait()
}
