package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/harborclinic/booking-platform/cmd/mainconfig"
	"github.com/harborclinic/booking-platform/internal/api/router"
	"github.com/harborclinic/booking-platform/internal/appointments"
	"github.com/harborclinic/booking-platform/internal/approval"
	appconfig "github.com/harborclinic/booking-platform/internal/config"
	"github.com/harborclinic/booking-platform/internal/intake"
	"github.com/harborclinic/booking-platform/internal/notify"
	"github.com/harborclinic/booking-platform/internal/observability/metrics"
	"github.com/harborclinic/booking-platform/internal/payments"
	"github.com/harborclinic/booking-platform/internal/schema"
	"github.com/harborclinic/booking-platform/internal/slots"
	"github.com/harborclinic/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, approval locking degraded", "error", err)
		}
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	sources := schema.ParseSources(cfg.SlotSources)

	slotRepo := slots.NewRepository(pool, cfg.SlotSampleLimit, cfg.DefaultCurrency, bookingMetrics, logger)
	requestRepo := intake.NewRepository(pool, intake.DefaultTable, bookingMetrics, logger)
	appointmentRepo := appointments.NewRepository(pool, appointments.DefaultTable, bookingMetrics, logger)

	dispatcher := notify.NewDispatcher(
		emailSender(ctx, cfg, logger),
		notify.NewStubSMSSender(logger),
		cfg.NotifyEmailAddrs,
		cfg.NotifySMSNumbers,
		bookingMetrics,
		logger,
	)

	var provider payments.Provider
	switch {
	case cfg.PaymentProviderURL != "":
		provider = payments.NewHTTPProvider(cfg.PaymentProviderURL, cfg.PaymentProviderKey, cfg.PaymentProviderTimeout, logger)
	case cfg.OfflinePayments:
		provider = payments.NewOfflineProvider(logger)
	default:
		logger.Error("no payment provider configured and offline payments disabled")
		os.Exit(1)
	}

	orchestrator := payments.NewOrchestrator(slotRepo, requestRepo, provider, dispatcher, bookingMetrics, logger)
	bookingHandler := payments.NewBookingHandler(orchestrator, sources, logger)

	committer := approval.NewSlotCommitter(pool, sources, logger)
	lock := approval.NewRequestLock(redisClient, cfg.ApprovalLockTTL, logger)
	workflow := approval.NewWorkflow(requestRepo, appointmentRepo, committer, dispatcher, lock, bookingMetrics, logger)
	approvalHandler := approval.NewHandler(workflow, logger)

	slotAdminHandler := slots.NewAdminHandler(slotRepo, sources, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     bookingHandler,
		ApprovalHandler:    approvalHandler,
		SlotAdminHandler:   slotAdminHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// emailSender picks the configured email transport, falling back to a logging
// stub so notification plumbing stays exercised in development.
func emailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but no API key set, using stub sender")
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}
