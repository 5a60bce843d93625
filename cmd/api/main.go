package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/spasuite/booking-api/pkg/logger"
	"github.com/spasuite/booking-api/pkg/messaging/redis"
	"github.com/spasuite/booking-api/pkg/metrics"
	"github.com/spasuite/booking-api/pkg/validator"

	"github.com/spasuite/booking-api/internal/config"
	"github.com/spasuite/booking-api/internal/email"
	availabilityHandler "github.com/spasuite/booking-api/internal/handler/availability"
	calendarHandler "github.com/spasuite/booking-api/internal/handler/calendar"
	catalogHandler "github.com/spasuite/booking-api/internal/handler/catalog"
	healthHandler "github.com/spasuite/booking-api/internal/handler/health"
	ledgerHandler "github.com/spasuite/booking-api/internal/handler/ledger"
	reservationHandler "github.com/spasuite/booking-api/internal/handler/reservation"
	webhookHandler "github.com/spasuite/booking-api/internal/handler/webhook"
	"github.com/spasuite/booking-api/internal/middleware"
	"github.com/spasuite/booking-api/internal/repository/postgres"
	"github.com/spasuite/booking-api/internal/router"
	availabilityService "github.com/spasuite/booking-api/internal/service/availability"
	calendarService "github.com/spasuite/booking-api/internal/service/calendar"
	ledgerService "github.com/spasuite/booking-api/internal/service/ledger"
	notificationService "github.com/spasuite/booking-api/internal/service/notification"
	"github.com/spasuite/booking-api/internal/service/payment"
	reservationService "github.com/spasuite/booking-api/internal/service/reservation"
	"github.com/spasuite/booking-api/internal/sms"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	appMetrics := metrics.New("booking")

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	txm := &baseRepo
	catalogRepo := postgres.NewCatalogRepository(db)
	calendarRepo := postgres.NewCalendarRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	packageRepo := postgres.NewPackageRepository(db)
	voucherRepo := postgres.NewVoucherRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Outbound providers
	emailSvc := email.NewSMTPService(cfg.SMTP)
	smsSender := sms.NewGatewaySender(cfg.SMS)

	// Services
	availSvc := availabilityService.NewService(catalogRepo, calendarRepo, reservationRepo)
	calendarSvc := calendarService.NewService(calendarRepo, catalogRepo)
	ledgerSvc := ledgerService.NewService(packageRepo, voucherRepo, catalogRepo, txm, appLogger)
	paymentResolver := payment.NewResolver(ledgerSvc)
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
	reservationSvc := reservationService.NewService(
		reservationRepo, catalogRepo, availSvc, ledgerSvc,
		paymentResolver, notificationSvc, broker, txm, appLogger,
	)

	if err := validator.RegisterCustom(); err != nil {
		log.Fatal().Err(err).Msg("failed to register request validations")
	}

	// Handlers
	r := router.NewRouter(
		healthHandler.NewHandler(db),
		availabilityHandler.NewHandler(availSvc),
		reservationHandler.NewHandler(reservationSvc),
		calendarHandler.NewHandler(calendarSvc),
		catalogHandler.NewHandler(catalogRepo),
		ledgerHandler.NewHandler(ledgerSvc, notificationSvc),
		webhookHandler.NewHandler(reservationSvc, ledgerSvc, cfg.Webhook.PaymentSecret, appLogger),
		router.Config{
			RateLimit:  rate.Limit(100),
			RateBurst:  200,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
