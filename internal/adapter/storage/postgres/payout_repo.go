package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const payoutColumns = `id, request_number, vendor_id, payment_method_id, requested_amount, approved_amount,
		final_amount, processing_fee, tds_amount, status, transaction_id, reference_number, rejection_reason,
		vendor_notes, admin_notes, idempotency_key, approved_by, processed_by, requested_at, approved_at,
		processing_at, paid_at, rejected_at, updated_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	p := &domain.PayoutRequest{}
	err := row.Scan(
		&p.ID, &p.RequestNumber, &p.VendorID, &p.PaymentMethodID, &p.RequestedAmount, &p.ApprovedAmount,
		&p.FinalAmount, &p.ProcessingFee, &p.TDSAmount, &p.Status, &p.TransactionID, &p.ReferenceNumber, &p.RejectionReason,
		&p.VendorNotes, &p.AdminNotes, &p.IdempotencyKey, &p.ApprovedBy, &p.ProcessedBy, &p.RequestedAt, &p.ApprovedAt,
		&p.ProcessingAt, &p.PaidAt, &p.RejectedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a payout request within a transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `INSERT INTO payout_requests (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.RequestNumber, p.VendorID, p.PaymentMethodID, p.RequestedAmount, p.ApprovedAmount,
		p.FinalAmount, p.ProcessingFee, p.TDSAmount, p.Status, p.TransactionID, p.ReferenceNumber, p.RejectionReason,
		p.VendorNotes, p.AdminNotes, p.IdempotencyKey, p.ApprovedBy, p.ProcessedBy, p.RequestedAt, p.ApprovedAt,
		p.ProcessingAt, p.PaidAt, p.RejectedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID fetches a payout without locking.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`

	p, err := scanPayout(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate fetches a payout with pessimistic locking.
// This MUST be called within a transaction.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1 FOR UPDATE`

	p, err := scanPayout(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout for update: %w", err)
	}
	return p, nil
}

// GetByIdempotencyKey finds a vendor's earlier request carrying the same key.
func (r *PayoutRepo) GetByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE vendor_id = $1 AND idempotency_key = $2`

	p, err := scanPayout(r.pool.QueryRow(ctx, query, vendorID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by idempotency key: %w", err)
	}
	return p, nil
}

// Update writes the mutable columns of a payout within a transaction.
func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `UPDATE payout_requests
		SET approved_amount = $2, final_amount = $3, processing_fee = $4, tds_amount = $5, status = $6,
			transaction_id = $7, reference_number = $8, rejection_reason = $9, admin_notes = $10,
			approved_by = $11, processed_by = $12, approved_at = $13, processing_at = $14, paid_at = $15,
			rejected_at = $16, updated_at = $17
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		p.ID, p.ApprovedAmount, p.FinalAmount, p.ProcessingFee, p.TDSAmount, p.Status,
		p.TransactionID, p.ReferenceNumber, p.RejectionReason, p.AdminNotes,
		p.ApprovedBy, p.ProcessedBy, p.ApprovedAt, p.ProcessingAt, p.PaidAt,
		p.RejectedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	return nil
}

// SumRequestedSince totals the vendor's non-rejected requests at or after since.
func (r *PayoutRepo) SumRequestedSince(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(requested_amount), 0) FROM payout_requests
		WHERE vendor_id = $1 AND status <> 'rejected' AND requested_at >= $2`

	var sum decimal.Decimal
	if err := tx.QueryRow(ctx, query, vendorID, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum requested payouts: %w", err)
	}
	return sum, nil
}

func payoutWhere(f domain.PayoutFilter) (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	if f.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIdx))
		args = append(args, *f.VendorID)
		argIdx++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, f.Status)
		argIdx++
	}
	if f.From != nil {
		conditions = append(conditions, fmt.Sprintf("requested_at >= $%d", argIdx))
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		conditions = append(conditions, fmt.Sprintf("requested_at < $%d", argIdx))
		args = append(args, *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of payouts matching the filter, newest first.
func (r *PayoutRepo) List(ctx context.Context, f domain.PayoutFilter, page domain.Page) ([]domain.PayoutRequest, int64, error) {
	page = page.Normalize()
	where, args := payoutWhere(f)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payout_requests %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	n := len(args)
	dataQuery := fmt.Sprintf(`SELECT %s FROM payout_requests %s ORDER BY requested_at DESC, id LIMIT $%d OFFSET $%d`,
		payoutColumns, where, n+1, n+2)
	args = append(args, page.PageSize, page.Offset())

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payout rows: %w", err)
	}
	return payouts, total, nil
}

// GetStats counts and sums payouts per status.
func (r *PayoutRepo) GetStats(ctx context.Context, f domain.PayoutFilter) ([]domain.PayoutStats, error) {
	where, args := payoutWhere(f)
	query := fmt.Sprintf(`SELECT status, COUNT(*), COALESCE(SUM(requested_amount), 0)
		FROM payout_requests %s GROUP BY status ORDER BY status`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payout stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.PayoutStats
	for rows.Next() {
		s := domain.PayoutStats{}
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan payout stats row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout stats rows: %w", err)
	}
	return stats, nil
}
