package main

import (
	"context"
	"fmt"

	"marketplace-payouts/config"
	"marketplace-payouts/internal/adapter/storage/memory"
	pgStorage "marketplace-payouts/internal/adapter/storage/postgres"
	"marketplace-payouts/internal/core/ports"

	"github.com/rs/zerolog"
)

// repositories is the persistence surface the services are built on.
type repositories struct {
	transactor    ports.DBTransactor
	wallets       ports.WalletRepository
	walletTxs     ports.WalletTransactionRepository
	payouts       ports.PayoutRepository
	methods       ports.PaymentMethodRepository
	audit         ports.AuditRepository
	payoutConfigs ports.PayoutConfigRepository
	notifications ports.NotificationRepository
	health        []ports.HealthChecker
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			transactor:    memory.NewTransactor(store, cfg.Database.LockTimeout),
			wallets:       memory.NewWalletRepo(store),
			walletTxs:     memory.NewWalletTransactionRepo(store),
			payouts:       memory.NewPayoutRepo(store),
			methods:       memory.NewPaymentMethodRepo(store),
			audit:         memory.NewAuditRepo(store),
			payoutConfigs: memory.NewPayoutConfigRepo(store),
			notifications: memory.NewNotificationRepo(store),
			close:         func() {},
		}, nil

	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := pgStorage.RunMigrations(cfg.Database.DSN(), log); err != nil {
				return nil, err
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &repositories{
			transactor:    pgStorage.NewTransactor(pool, cfg.Database.LockTimeout),
			wallets:       pgStorage.NewWalletRepo(pool),
			walletTxs:     pgStorage.NewWalletTransactionRepo(pool),
			payouts:       pgStorage.NewPayoutRepo(pool),
			methods:       pgStorage.NewPaymentMethodRepo(pool),
			audit:         pgStorage.NewAuditRepo(pool),
			payoutConfigs: pgStorage.NewPayoutConfigRepo(pool),
			notifications: pgStorage.NewNotificationRepo(pool),
			health:        []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:         pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}
