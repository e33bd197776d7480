package postgres

import (
	"context"
	"fmt"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, payout_id, payment_method_id, vendor_id, action, old_status, new_status,
		performed_by, performed_by_type, notes, metadata, created_at`

// AuditRepo implements ports.AuditRepository. Rows are only ever inserted.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed AuditRepository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create appends an audit entry within the caller's transaction.
func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditLogEntry) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO payout_audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.PayoutID, e.PaymentMethodID, e.VendorID, e.Action, e.OldStatus, e.NewStatus,
		e.PerformedBy, e.PerformedByType, e.Notes, meta, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByPayout returns a payout's audit trail, newest first.
func (r *AuditRepo) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.AuditLogEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM payout_audit_logs WHERE payout_id = $1 ORDER BY seq DESC`
	return r.query(ctx, query, payoutID)
}

// ListByVendor returns one page of a vendor's audit trail, newest first.
func (r *AuditRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error) {
	page = page.Normalize()

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payout_audit_logs WHERE vendor_id = $1`, vendorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM payout_audit_logs
		WHERE vendor_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`
	entries, err := r.query(ctx, query, vendorID, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *AuditRepo) query(ctx context.Context, query string, args ...any) ([]domain.AuditLogEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		e := domain.AuditLogEntry{}
		var meta []byte
		err := rows.Scan(
			&e.ID, &e.PayoutID, &e.PaymentMethodID, &e.VendorID, &e.Action, &e.OldStatus, &e.NewStatus,
			&e.PerformedBy, &e.PerformedByType, &e.Notes, &meta, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if e.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, nil
}
