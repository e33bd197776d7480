package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-payouts/config"
	httpHandler "marketplace-payouts/internal/adapter/http/handler"
	"marketplace-payouts/internal/adapter/http/middleware"
	"marketplace-payouts/internal/adapter/messaging/kafka"
	redisStorage "marketplace-payouts/internal/adapter/storage/redis"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/internal/service"
	"marketplace-payouts/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Marketplace Payouts")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, logger.Component(log, "storage"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	healthCheckers := repos.health

	// Redis is optional. Without it idempotency falls back to the database
	// unique key and rate limiting is off.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimiter      middleware.Limiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, logger.Component(log, "redis"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimiter = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	fpSvc := service.NewArgon2FingerprintService(cfg.AES.FingerprintPepper)
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Notification sinks
	var (
		sinks []ports.NotificationSink
		feed  ports.NotificationFeed
	)
	if cfg.Notifications.Store.Enabled {
		sinks = append(sinks, service.NewNotificationStoreSink(repos.notifications))
		feed = service.NewNotificationFeedService(repos.notifications)
	}
	var publisher *kafka.Publisher
	if cfg.Notifications.Kafka.Enabled {
		publisher = kafka.NewPublisher(kafka.NewWriter(cfg.Notifications.Kafka.Brokers), cfg.Notifications.Kafka.Topic)
		sinks = append(sinks, publisher)
		log.Info().Str("topic", cfg.Notifications.Kafka.Topic).Msg("Kafka notifications enabled")
	}
	if hook := cfg.Notifications.Webhook; hook.URL != "" {
		sinks = append(sinks, service.NewWebhookRelay(
			hook.URL, hook.Secret, sigSvc,
			&http.Client{Timeout: hook.Timeout},
			hook.RetryIntervals, logger.Component(log, "webhook"),
		))
		log.Info().Str("url", hook.URL).Msg("Webhook notifications enabled")
	}
	dispatcher := service.NewNotificationDispatcher(cfg.Notifications.QueueSize, logger.Component(log, "notifications"), sinks...)

	// Business services
	ledgerLog := logger.Component(log, "ledger")
	payoutLog := logger.Component(log, "payouts")
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))
	ledger := service.NewLedgerService(repos.wallets, repos.walletTxs, ledgerLog)
	configSvc := service.NewConfigService(repos.payoutConfigs, auditSvc, repos.transactor, logger.Component(log, "config"))
	payoutSvc := service.NewPayoutService(
		repos.payouts,
		repos.methods,
		ledger,
		service.NewLimitChecker(repos.payouts, payoutLog),
		configSvc,
		auditSvc,
		dispatcher,
		idempotencyCache,
		repos.transactor,
		service.PayoutSettings{
			OperationTimeout: cfg.Payout.OperationTimeout,
			IdempotencyTTL:   cfg.Payout.IdempotencyTTL,
		},
		payoutLog,
	)
	methodSvc := service.NewPaymentMethodService(repos.methods, encSvc, fpSvc, auditSvc, dispatcher, repos.transactor, logger.Component(log, "payment_methods"))
	walletSvc := service.NewWalletService(ledger, repos.wallets, repos.walletTxs, auditSvc, repos.transactor, ledgerLog)
	reportingSvc := service.NewReportingService(repos.wallets, repos.walletTxs, repos.payouts, auditSvc)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PayoutSvc:        payoutSvc,
		PaymentMethodSvc: methodSvc,
		WalletSvc:        walletSvc,
		ConfigSvc:        configSvc,
		ReportingSvc:     reportingSvc,
		NotificationFeed: feed,
		TokenSvc:         tokenSvc,
		RateLimiter:      rateLimiter,
		HealthCheckers:   healthCheckers,
		Logger:           logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Notification queue not drained")
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka writer")
		}
	}

	log.Info().Msg("Server exited")
}
