package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentMethodColumns = `id, vendor_id, method_type, account_holder_name, account_number_enc, ifsc_code_enc,
		upi_id_enc, account_fingerprint, masked_account, verification_status, rejection_reason, is_default,
		is_active, verified_at, verified_by, created_at, updated_at`

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct {
	pool Pool
}

// NewPaymentMethodRepo creates a new PaymentMethodRepo.
func NewPaymentMethodRepo(pool Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	m := &domain.PaymentMethod{}
	err := row.Scan(
		&m.ID, &m.VendorID, &m.MethodType, &m.AccountHolderName, &m.AccountNumberEnc, &m.IFSCCodeEnc,
		&m.UPIIDEnc, &m.AccountFingerprint, &m.MaskedAccount, &m.VerificationStatus, &m.RejectionReason, &m.IsDefault,
		&m.IsActive, &m.VerifiedAt, &m.VerifiedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a payment method within a transaction.
func (r *PaymentMethodRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.PaymentMethod) error {
	query := `INSERT INTO payment_methods (` + paymentMethodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := tx.Exec(ctx, query,
		m.ID, m.VendorID, m.MethodType, m.AccountHolderName, m.AccountNumberEnc, m.IFSCCodeEnc,
		m.UPIIDEnc, m.AccountFingerprint, m.MaskedAccount, m.VerificationStatus, m.RejectionReason, m.IsDefault,
		m.IsActive, m.VerifiedAt, m.VerifiedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

// GetByID fetches a payment method without locking.
func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1`

	m, err := scanPaymentMethod(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment method: %w", err)
	}
	return m, nil
}

// GetByIDForUpdate fetches a payment method with pessimistic locking.
func (r *PaymentMethodRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1 FOR UPDATE`

	m, err := scanPaymentMethod(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment method for update: %w", err)
	}
	return m, nil
}

// ListByVendor returns a vendor's active payment methods, default first.
func (r *PaymentMethodRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods
		WHERE vendor_id = $1 AND is_active ORDER BY is_default DESC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method row: %w", err)
		}
		methods = append(methods, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment method rows: %w", err)
	}
	return methods, nil
}

// ExistsByFingerprint reports whether the vendor already has an active method with this fingerprint.
func (r *PaymentMethodRepo) ExistsByFingerprint(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, fingerprint string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payment_methods WHERE vendor_id = $1 AND account_fingerprint = $2 AND is_active)`

	var exists bool
	if err := tx.QueryRow(ctx, query, vendorID, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment method fingerprint: %w", err)
	}
	return exists, nil
}

// CountActive counts the vendor's active payment methods.
func (r *PaymentMethodRepo) CountActive(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM payment_methods WHERE vendor_id = $1 AND is_active`

	var n int
	if err := tx.QueryRow(ctx, query, vendorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payment methods: %w", err)
	}
	return n, nil
}

// ClearDefault unsets the vendor's current default method.
func (r *PaymentMethodRepo) ClearDefault(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) error {
	query := `UPDATE payment_methods SET is_default = FALSE, updated_at = NOW() WHERE vendor_id = $1 AND is_default`

	if _, err := tx.Exec(ctx, query, vendorID); err != nil {
		return fmt.Errorf("clear default payment method: %w", err)
	}
	return nil
}

// Update writes the mutable columns of a payment method.
func (r *PaymentMethodRepo) Update(ctx context.Context, tx pgx.Tx, m *domain.PaymentMethod) error {
	query := `UPDATE payment_methods
		SET verification_status = $2, rejection_reason = $3, is_default = $4, is_active = $5,
			verified_at = $6, verified_by = $7, updated_at = $8
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		m.ID, m.VerificationStatus, m.RejectionReason, m.IsDefault, m.IsActive,
		m.VerifiedAt, m.VerifiedBy, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment method not found: %s", m.ID)
	}
	return nil
}
