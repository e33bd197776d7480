package service

import (
	"context"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConfigServiceImpl implements ports.ConfigService. The active configuration
// is read from storage on every call, never cached.
type ConfigServiceImpl struct {
	repo       ports.PayoutConfigRepository
	audit      ports.AuditService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

func NewConfigService(repo ports.PayoutConfigRepository, audit ports.AuditService, transactor ports.DBTransactor, log zerolog.Logger) *ConfigServiceImpl {
	return &ConfigServiceImpl{repo: repo, audit: audit, transactor: transactor, log: log}
}

// GetActive returns the configuration in force.
func (s *ConfigServiceImpl) GetActive(ctx context.Context) (*domain.PayoutConfiguration, error) {
	cfg, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, apperror.FromDB("get active payout config", err)
	}
	if cfg == nil {
		return nil, apperror.ErrConfigurationMissing()
	}
	return cfg, nil
}

// Update replaces the active configuration. The previous one is kept, inactive.
func (s *ConfigServiceImpl) Update(ctx context.Context, actor domain.Actor, cfg *domain.PayoutConfiguration) (*domain.PayoutConfiguration, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	next := *cfg
	next.ID = uuid.New()
	next.CreatedBy = &actor.ID
	next.CreatedAt = time.Now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.repo.Activate(ctx, dbTx, &next); err != nil {
		return nil, apperror.FromDB("activate payout config", err)
	}

	entry := &domain.AuditLogEntry{
		Action:          domain.AuditPayoutConfigActivated,
		PerformedBy:     actor.ID,
		PerformedByType: actor.Type,
		Metadata: map[string]any{
			"config_id":                 next.ID.String(),
			"min_payout_amount":         next.MinPayoutAmount.String(),
			"max_payout_amount":         next.MaxPayoutAmount.String(),
			"daily_payout_limit":        next.DailyPayoutLimit.String(),
			"monthly_payout_limit":      next.MonthlyPayoutLimit.String(),
			"processing_fee_percentage": next.ProcessingFeePercentage.String(),
			"processing_fee_fixed":      next.ProcessingFeeFixed.String(),
			"tds_percentage":            next.TDSPercentage.String(),
			"auto_approval_limit":       next.AutoApprovalLimit.String(),
		},
	}
	if err := s.audit.Record(ctx, dbTx, entry); err != nil {
		return nil, apperror.FromDB("record audit", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("config_id", next.ID.String()).
		Str("actor_id", actor.ID.String()).
		Msg("payout configuration activated")
	return &next, nil
}
