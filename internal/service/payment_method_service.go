package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	upiPattern     = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)
	accountPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
)

// PaymentMethodServiceImpl implements ports.PaymentMethodService. Account
// details are encrypted before they reach storage; duplicates are detected
// through a keyed fingerprint so plaintext is never compared.
type PaymentMethodServiceImpl struct {
	repo        ports.PaymentMethodRepository
	encSvc      ports.EncryptionService
	fingerprint ports.FingerprintService
	audit       ports.AuditService
	notifier    ports.NotificationEmitter
	transactor  ports.DBTransactor
	log         zerolog.Logger
	now         func() time.Time
}

func NewPaymentMethodService(
	repo ports.PaymentMethodRepository,
	encSvc ports.EncryptionService,
	fingerprint ports.FingerprintService,
	audit ports.AuditService,
	notifier ports.NotificationEmitter,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentMethodServiceImpl {
	return &PaymentMethodServiceImpl{
		repo:        repo,
		encSvc:      encSvc,
		fingerprint: fingerprint,
		audit:       audit,
		notifier:    notifier,
		transactor:  transactor,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeAddInput(req ports.AddPaymentMethodInput) (ports.AddPaymentMethodInput, error) {
	req.AccountHolderName = strings.TrimSpace(req.AccountHolderName)
	if req.AccountHolderName == "" {
		return req, apperror.Validation("account_holder_name is required")
	}

	switch req.MethodType {
	case domain.MethodBankAccount:
		req.AccountNumber = strings.ReplaceAll(strings.TrimSpace(req.AccountNumber), " ", "")
		req.IFSCCode = strings.ToUpper(strings.TrimSpace(req.IFSCCode))
		if !accountPattern.MatchString(req.AccountNumber) {
			return req, apperror.Validation("account_number must be 9 to 18 digits")
		}
		if !ifscPattern.MatchString(req.IFSCCode) {
			return req, apperror.Validation("ifsc_code is invalid")
		}
		req.UPIID = ""
	case domain.MethodUPI:
		req.UPIID = strings.ToLower(strings.TrimSpace(req.UPIID))
		if !upiPattern.MatchString(req.UPIID) {
			return req, apperror.Validation("upi_id is invalid")
		}
		req.AccountNumber, req.IFSCCode = "", ""
	default:
		return req, apperror.Validation("method_type must be bank_account or upi")
	}
	return req, nil
}

func fingerprintInput(req ports.AddPaymentMethodInput) string {
	if req.MethodType == domain.MethodUPI {
		return "UPI|" + req.UPIID
	}
	return "BANK|" + req.AccountNumber + "|" + req.IFSCCode
}

// Add registers a payment method in pending verification. A vendor's first
// active method becomes the default.
func (s *PaymentMethodServiceImpl) Add(ctx context.Context, vendorID uuid.UUID, req ports.AddPaymentMethodInput) (*domain.PaymentMethod, error) {
	req, err := normalizeAddInput(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &domain.PaymentMethod{
		ID:                 uuid.New(),
		VendorID:           vendorID,
		MethodType:         req.MethodType,
		AccountHolderName:  req.AccountHolderName,
		AccountFingerprint: s.fingerprint.Fingerprint(fingerprintInput(req)),
		VerificationStatus: domain.VerificationPending,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.MethodType == domain.MethodUPI {
		m.MaskedAccount = domain.MaskAccount(req.UPIID)
	} else {
		m.MaskedAccount = domain.MaskAccount(req.AccountNumber)
	}

	if m.AccountNumberEnc, err = s.encSvc.Encrypt(req.AccountNumber); err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	if m.IFSCCodeEnc, err = s.encSvc.Encrypt(req.IFSCCode); err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	if m.UPIIDEnc, err = s.encSvc.Encrypt(req.UPIID); err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	exists, err := s.repo.ExistsByFingerprint(ctx, dbTx, vendorID, m.AccountFingerprint)
	if err != nil {
		return nil, apperror.FromDB("check fingerprint", err)
	}
	if exists {
		return nil, apperror.ErrDuplicatePaymentMethod()
	}

	active, err := s.repo.CountActive(ctx, dbTx, vendorID)
	if err != nil {
		return nil, apperror.FromDB("count payment methods", err)
	}
	m.IsDefault = active == 0

	if err := s.repo.Create(ctx, dbTx, m); err != nil {
		if apperror.IsUniqueViolation(err) {
			return nil, apperror.ErrDuplicatePaymentMethod()
		}
		return nil, apperror.FromDB("insert payment method", err)
	}

	if err := s.audit.Record(ctx, dbTx, newPaymentMethodAuditEntry(m, domain.AuditPaymentMethodCreated, "", domain.Actor{ID: vendorID, Type: domain.ActorVendor}, "")); err != nil {
		return nil, apperror.FromDB("record audit", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("payment_method_id", m.ID.String()).
		Str("vendor_id", vendorID.String()).
		Str("method_type", string(m.MethodType)).
		Bool("is_default", m.IsDefault).
		Msg("payment method added")
	return m, nil
}

func (s *PaymentMethodServiceImpl) List(ctx context.Context, vendorID uuid.UUID) ([]domain.PaymentMethod, error) {
	methods, err := s.repo.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, apperror.FromDB("list payment methods", err)
	}
	return methods, nil
}

// SetDefault makes methodID the vendor's only default.
func (s *PaymentMethodServiceImpl) SetDefault(ctx context.Context, vendorID, methodID uuid.UUID) (*domain.PaymentMethod, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	m, err := s.repo.GetByIDForUpdate(ctx, dbTx, methodID)
	if err != nil {
		return nil, apperror.FromDB("lock payment method", err)
	}
	if m == nil || m.VendorID != vendorID || !m.IsActive {
		return nil, apperror.ErrNotFound("Payment method")
	}
	if m.IsDefault {
		return m, nil
	}

	if err := s.repo.ClearDefault(ctx, dbTx, vendorID); err != nil {
		return nil, apperror.FromDB("clear default", err)
	}
	m.IsDefault = true
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, dbTx, m); err != nil {
		return nil, apperror.FromDB("update payment method", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("payment_method_id", methodID.String()).
		Str("vendor_id", vendorID.String()).
		Msg("default payment method changed")
	return m, nil
}

// Remove deactivates the method. Rows are kept for payouts that reference them.
func (s *PaymentMethodServiceImpl) Remove(ctx context.Context, vendorID, methodID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	m, err := s.repo.GetByIDForUpdate(ctx, dbTx, methodID)
	if err != nil {
		return apperror.FromDB("lock payment method", err)
	}
	if m == nil || m.VendorID != vendorID || !m.IsActive {
		return apperror.ErrNotFound("Payment method")
	}

	m.IsActive = false
	m.IsDefault = false
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, dbTx, m); err != nil {
		return apperror.FromDB("update payment method", err)
	}

	if err := s.audit.Record(ctx, dbTx, newPaymentMethodAuditEntry(m, domain.AuditPaymentMethodRemoved, m.VerificationStatus, domain.Actor{ID: vendorID, Type: domain.ActorVendor}, "")); err != nil {
		return apperror.FromDB("record audit", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("payment_method_id", methodID.String()).
		Str("vendor_id", vendorID.String()).
		Msg("payment method removed")
	return nil
}

// Verify marks the method payable.
func (s *PaymentMethodServiceImpl) Verify(ctx context.Context, actor domain.Actor, methodID uuid.UUID) (*domain.PaymentMethod, error) {
	return s.review(ctx, actor, methodID, domain.VerificationVerified, "")
}

// Reject marks the method unusable for payouts.
func (s *PaymentMethodServiceImpl) Reject(ctx context.Context, actor domain.Actor, methodID uuid.UUID, reason string) (*domain.PaymentMethod, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.Validation("rejection reason is required")
	}
	return s.review(ctx, actor, methodID, domain.VerificationRejected, reason)
}

func (s *PaymentMethodServiceImpl) review(ctx context.Context, actor domain.Actor, methodID uuid.UUID, status domain.VerificationStatus, reason string) (*domain.PaymentMethod, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	m, err := s.repo.GetByIDForUpdate(ctx, dbTx, methodID)
	if err != nil {
		return nil, apperror.FromDB("lock payment method", err)
	}
	if m == nil || !m.IsActive {
		return nil, apperror.ErrNotFound("Payment method")
	}

	from := m.VerificationStatus
	now := s.now()
	m.VerificationStatus = status
	m.UpdatedAt = now
	if status == domain.VerificationVerified {
		m.RejectionReason = nil
		m.VerifiedAt = &now
		m.VerifiedBy = &actor.ID
	} else {
		m.RejectionReason = &reason
		m.VerifiedAt = nil
		m.VerifiedBy = nil
	}

	if err := s.repo.Update(ctx, dbTx, m); err != nil {
		return nil, apperror.FromDB("update payment method", err)
	}

	action := domain.AuditPaymentMethodVerified
	if status == domain.VerificationRejected {
		action = domain.AuditPaymentMethodRejected
	}
	if err := s.audit.Record(ctx, dbTx, newPaymentMethodAuditEntry(m, action, from, actor, reason)); err != nil {
		return nil, apperror.FromDB("record audit", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("payment_method_id", methodID.String()).
		Str("vendor_id", m.VendorID.String()).
		Str("status", string(status)).
		Msg("payment method reviewed")

	s.notifier.Emit(ctx, domain.NewPaymentMethodNotification(m, now))
	return m, nil
}

func newPaymentMethodAuditEntry(m *domain.PaymentMethod, action domain.AuditAction, from domain.VerificationStatus, actor domain.Actor, notes string) *domain.AuditLogEntry {
	methodID, vendorID := m.ID, m.VendorID
	newStatus := string(m.VerificationStatus)
	return &domain.AuditLogEntry{
		PaymentMethodID: &methodID,
		VendorID:        &vendorID,
		Action:          action,
		OldStatus:       domain.StringPtr(string(from)),
		NewStatus:       &newStatus,
		PerformedBy:     actor.ID,
		PerformedByType: actor.Type,
		Notes:           domain.StringPtr(notes),
		Metadata: map[string]any{
			"method_type":    string(m.MethodType),
			"masked_account": m.MaskedAccount,
			"is_active":      m.IsActive,
		},
	}
}
