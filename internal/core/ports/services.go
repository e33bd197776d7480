package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// FingerprintService derives a stable keyed hash of sensitive account data.
type FingerprintService interface {
	Fingerprint(value string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(actor domain.Actor) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID uuid.UUID
	Role    domain.ActorType
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached result or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Claim reserves key for one in-flight request. False means someone else holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unclaim(ctx context.Context, key string) error
}

// --- Core components ---

// ConfigProvider returns the payout configuration in force.
type ConfigProvider interface {
	GetActive(ctx context.Context) (*domain.PayoutConfiguration, error)
}

// LedgerRef ties a ledger row to what caused it.
type LedgerRef struct {
	Type        string
	ID          string
	Description string
}

// LedgerService moves funds between a vendor's available and pending
// balances. Every call runs inside the caller's transaction and appends one
// ledger row.
type LedgerService interface {
	// Lock takes the wallet row lock for the rest of tx.
	Lock(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.WalletBalance, error)
	Reserve(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, ref LedgerRef) (*domain.WalletTransaction, error)
	Release(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, ref LedgerRef) (*domain.WalletTransaction, error)
	Commit(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, pendingAmount, netAmount decimal.Decimal, ref LedgerRef) (*domain.WalletTransaction, error)
	Adjust(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, delta decimal.Decimal, ref LedgerRef) (*domain.WalletTransaction, error)
	Credit(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, category domain.TransactionCategory, ref LedgerRef) (*domain.WalletTransaction, error)
}

// LimitChecker enforces the daily and monthly payout caps.
type LimitChecker interface {
	Check(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, cfg *domain.PayoutConfiguration, now time.Time) error
}

// AuditService writes audit entries inside the mutation's transaction and reads them back.
type AuditService interface {
	Record(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error
	ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.AuditLogEntry, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error)
}

// NotificationEmitter hands events off for delivery. It never blocks and never fails the caller.
type NotificationEmitter interface {
	Emit(ctx context.Context, event *domain.NotificationEvent)
}

// NotificationSink delivers one event to one destination.
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, event *domain.NotificationEvent) error
}

// --- Service Ports (Business Logic) ---

// PayoutService runs the payout state machine.
type PayoutService interface {
	RequestPayout(ctx context.Context, req RequestPayoutInput) (*domain.PayoutRequest, error)
	Approve(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, approvedAmount *decimal.Decimal, adminNotes string) (*domain.PayoutRequest, error)
	Reject(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, reason string) (*domain.PayoutRequest, error)
	MarkProcessing(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, adminNotes string) (*domain.PayoutRequest, error)
	MarkPaid(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, req MarkPaidInput) (*domain.PayoutRequest, error)
}

// RequestPayoutInput holds validated input for a payout request.
type RequestPayoutInput struct {
	VendorID        uuid.UUID
	PaymentMethodID uuid.UUID
	Amount          decimal.Decimal
	VendorNotes     string
	IdempotencyKey  string
}

// MarkPaidInput carries the operator-supplied settlement facts.
type MarkPaidInput struct {
	TransactionID   string
	ReferenceNumber string
	AdminNotes      string
}

// PaymentMethodService manages vendor payout destinations.
type PaymentMethodService interface {
	Add(ctx context.Context, vendorID uuid.UUID, req AddPaymentMethodInput) (*domain.PaymentMethod, error)
	List(ctx context.Context, vendorID uuid.UUID) ([]domain.PaymentMethod, error)
	SetDefault(ctx context.Context, vendorID, methodID uuid.UUID) (*domain.PaymentMethod, error)
	Remove(ctx context.Context, vendorID, methodID uuid.UUID) error
	Verify(ctx context.Context, actor domain.Actor, methodID uuid.UUID) (*domain.PaymentMethod, error)
	Reject(ctx context.Context, actor domain.Actor, methodID uuid.UUID, reason string) (*domain.PaymentMethod, error)
}

// AddPaymentMethodInput holds plaintext account details. They are encrypted before storage.
type AddPaymentMethodInput struct {
	MethodType        domain.PaymentMethodType
	AccountHolderName string
	AccountNumber     string
	IFSCCode          string
	UPIID             string
}

// WalletService exposes wallet funding and reconciliation.
type WalletService interface {
	Credit(ctx context.Context, actor domain.Actor, req CreditInput) (*domain.WalletTransaction, error)
	Reconcile(ctx context.Context, vendorID uuid.UUID) (*ReconcileReport, error)
}

// CreditInput adds earnings to a vendor wallet.
type CreditInput struct {
	VendorID      uuid.UUID
	Amount        decimal.Decimal
	Category      domain.TransactionCategory
	ReferenceType string
	ReferenceID   string
	Description   string
}

// ReconcileReport compares the stored wallet with a replay of its ledger.
type ReconcileReport struct {
	VendorID     uuid.UUID          `json:"vendor_id"`
	Stored       domain.LedgerState `json:"stored"`
	Replayed     domain.LedgerState `json:"replayed"`
	Transactions int                `json:"transactions"`
	Consistent   bool               `json:"consistent"`
	Detail       string             `json:"detail,omitempty"`
}

// ConfigService reads and replaces the payout configuration.
type ConfigService interface {
	ConfigProvider
	Update(ctx context.Context, actor domain.Actor, cfg *domain.PayoutConfiguration) (*domain.PayoutConfiguration, error)
}

// ReportingService serves read-only views over payouts, ledger and audit.
type ReportingService interface {
	GetWallet(ctx context.Context, vendorID uuid.UUID) (*domain.WalletBalance, error)
	ListWalletTransactions(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.WalletTransaction, int64, error)
	GetPayout(ctx context.Context, actor domain.Actor, payoutID uuid.UUID) (*domain.PayoutRequest, error)
	ListPayouts(ctx context.Context, filter domain.PayoutFilter, page domain.Page) ([]domain.PayoutRequest, int64, error)
	PayoutStats(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutStats, error)
	PayoutAudit(ctx context.Context, actor domain.Actor, payoutID uuid.UUID) ([]domain.AuditLogEntry, error)
	VendorAudit(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error)
}

// NotificationFeed serves a vendor's in-app notifications.
type NotificationFeed interface {
	List(ctx context.Context, vendorID uuid.UUID, unreadOnly bool, page domain.Page) ([]domain.NotificationEvent, int64, error)
	MarkRead(ctx context.Context, vendorID, id uuid.UUID) error
}
