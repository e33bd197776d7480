package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WalletRepository persists wallet balances.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Get(ctx context.Context, vendorID uuid.UUID) (*domain.WalletBalance, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.WalletBalance, error)
	// Create inserts the wallet unless one already exists for the vendor.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.WalletBalance) error
	Update(ctx context.Context, tx pgx.Tx, wallet *domain.WalletBalance) error
}

// WalletTransactionRepository appends and reads ledger rows. There is no update.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error
	// ListByVendor returns newest first.
	ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.WalletTransaction, int64, error)
	// ListAllByVendor returns the full log in write order.
	ListAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.WalletTransaction, error)
}

// PayoutRepository persists payout requests.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error)
	Update(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	// SumRequestedSince totals requested_amount of non-rejected payouts requested at or after since.
	SumRequestedSince(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, since time.Time) (decimal.Decimal, error)
	List(ctx context.Context, filter domain.PayoutFilter, page domain.Page) ([]domain.PayoutRequest, int64, error)
	GetStats(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutStats, error)
}

// PaymentMethodRepository persists vendor payment methods.
type PaymentMethodRepository interface {
	Create(ctx context.Context, tx pgx.Tx, method *domain.PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentMethod, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.PaymentMethod, error)
	// ExistsByFingerprint only considers active methods.
	ExistsByFingerprint(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, fingerprint string) (bool, error)
	CountActive(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (int, error)
	ClearDefault(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) error
	Update(ctx context.Context, tx pgx.Tx, method *domain.PaymentMethod) error
}

// AuditRepository appends and reads audit entries. There is no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error
	ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.AuditLogEntry, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error)
}

// PayoutConfigRepository persists payout configurations. At most one is active.
type PayoutConfigRepository interface {
	GetActive(ctx context.Context) (*domain.PayoutConfiguration, error)
	// Activate deactivates the current configuration and inserts cfg as active.
	Activate(ctx context.Context, tx pgx.Tx, cfg *domain.PayoutConfiguration) error
}

// NotificationRepository is the vendor's in-app notification feed.
type NotificationRepository interface {
	Create(ctx context.Context, event *domain.NotificationEvent) error
	ListByVendor(ctx context.Context, vendorID uuid.UUID, unreadOnly bool, page domain.Page) ([]domain.NotificationEvent, int64, error)
	MarkRead(ctx context.Context, vendorID, id uuid.UUID) (bool, error)
}
