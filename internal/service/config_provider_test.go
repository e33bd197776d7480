package service

import (
	"context"
	"errors"
	"testing"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports/mocks"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type configTestDeps struct {
	svc        *ConfigServiceImpl
	repo       *mocks.MockPayoutConfigRepository
	audit      *mocks.MockAuditService
	transactor *mocks.MockDBTransactor
}

func setupConfigService(t *testing.T) *configTestDeps {
	ctrl := gomock.NewController(t)
	d := &configTestDeps{
		repo:       mocks.NewMockPayoutConfigRepository(ctrl),
		audit:      mocks.NewMockAuditService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewConfigService(d.repo, d.audit, d.transactor, zerolog.Nop())
	return d
}

func TestConfigService_GetActive(t *testing.T) {
	d := setupConfigService(t)
	cfg := testPayoutConfig()
	d.repo.EXPECT().GetActive(gomock.Any()).Return(cfg, nil)

	got, err := d.svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestConfigService_GetActive_Missing(t *testing.T) {
	d := setupConfigService(t)
	d.repo.EXPECT().GetActive(gomock.Any()).Return(nil, nil)

	_, err := d.svc.GetActive(context.Background())
	assertAppError(t, err, apperror.CodeConfigurationMissing)
}

func TestConfigService_GetActive_ReadsEveryTime(t *testing.T) {
	d := setupConfigService(t)
	first, second := testPayoutConfig(), testPayoutConfig()
	second.AutoApprovalLimit = dec("0")
	d.repo.EXPECT().GetActive(gomock.Any()).Return(first, nil)
	d.repo.EXPECT().GetActive(gomock.Any()).Return(second, nil)

	got, err := d.svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = d.svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestConfigService_Update(t *testing.T) {
	d := setupConfigService(t)
	ctx := context.Background()
	tx := &mockTx{}
	admin := domain.Actor{ID: uuid.New(), Type: domain.ActorAdmin}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().Activate(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, cfg *domain.PayoutConfiguration) error {
			assert.NotEqual(t, uuid.Nil, cfg.ID)
			require.NotNil(t, cfg.CreatedBy)
			assert.Equal(t, admin.ID, *cfg.CreatedBy)
			return nil
		})
	d.audit.EXPECT().Record(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.AuditLogEntry) error {
			assert.Equal(t, domain.AuditPayoutConfigActivated, e.Action)
			assert.Equal(t, domain.ActorAdmin, e.PerformedByType)
			assert.Equal(t, "1000", e.Metadata["auto_approval_limit"])
			return nil
		})

	got, err := d.svc.Update(ctx, admin, testPayoutConfig())
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestConfigService_Update_Rejections(t *testing.T) {
	admin := domain.Actor{ID: uuid.New(), Type: domain.ActorAdmin}

	t.Run("vendor forbidden", func(t *testing.T) {
		d := setupConfigService(t)
		_, err := d.svc.Update(context.Background(), domain.Actor{ID: uuid.New(), Type: domain.ActorVendor}, testPayoutConfig())
		assertAppError(t, err, apperror.CodeForbidden)
	})

	t.Run("invalid config", func(t *testing.T) {
		d := setupConfigService(t)
		cfg := testPayoutConfig()
		cfg.TDSPercentage = dec("1.5")
		_, err := d.svc.Update(context.Background(), admin, cfg)
		assertAppError(t, err, apperror.CodeValidation)
	})

	t.Run("activate fails", func(t *testing.T) {
		d := setupConfigService(t)
		d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
		d.repo.EXPECT().Activate(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("boom"))
		_, err := d.svc.Update(context.Background(), admin, testPayoutConfig())
		assertAppError(t, err, apperror.CodeInternal)
	})
}
