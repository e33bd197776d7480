package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// errReplayed signals that requestPayout found the payout already created
// under the same idempotency key.
var errReplayed = errors.New("payout already created for idempotency key")

// PayoutSettings bounds payout operations.
type PayoutSettings struct {
	OperationTimeout time.Duration
	IdempotencyTTL   time.Duration
}

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	payouts    ports.PayoutRepository
	methods    ports.PaymentMethodRepository
	ledger     ports.LedgerService
	limits     ports.LimitChecker
	config     ports.ConfigProvider
	audit      ports.AuditService
	notifier   ports.NotificationEmitter
	idempCache ports.IdempotencyCache // nil when Redis is disabled
	transactor ports.DBTransactor
	settings   PayoutSettings
	log        zerolog.Logger
	now        func() time.Time
}

// NewPayoutService creates a new payout service. idempCache may be nil.
func NewPayoutService(
	payouts ports.PayoutRepository,
	methods ports.PaymentMethodRepository,
	ledger ports.LedgerService,
	limits ports.LimitChecker,
	config ports.ConfigProvider,
	audit ports.AuditService,
	notifier ports.NotificationEmitter,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	settings PayoutSettings,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		payouts:    payouts,
		methods:    methods,
		ledger:     ledger,
		limits:     limits,
		config:     config,
		audit:      audit,
		notifier:   notifier,
		idempCache: idempCache,
		transactor: transactor,
		settings:   settings,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *PayoutServiceImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.settings.OperationTimeout)
}

func idempotencyCacheKey(vendorID uuid.UUID, key string) string {
	return "payout:" + vendorID.String() + ":" + key
}

// ==================== RequestPayout ====================

// RequestPayout reserves funds for a new payout. With an idempotency key, a
// replay returns the payout created by the first request.
func (s *PayoutServiceImpl) RequestPayout(ctx context.Context, req ports.RequestPayoutInput) (*domain.PayoutRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}
	if !domain.HasMoneyScale(req.Amount) {
		return nil, apperror.Validation("amount must have at most 2 decimal places")
	}

	key := req.IdempotencyKey
	if key != "" {
		existing, err := s.findByIdempotencyKey(ctx, req.VendorID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.log.Info().
				Str("payout_id", existing.ID.String()).
				Str("idempotency_key", key).
				Msg("payout request replayed")
			return existing, nil
		}

		release, err := s.claim(ctx, req.VendorID, key)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	payout, autoApproved, err := s.requestPayout(ctx, req)
	if errors.Is(err, errReplayed) {
		s.log.Info().
			Str("payout_id", payout.ID.String()).
			Str("idempotency_key", key).
			Msg("payout request replayed after lock wait")
		return payout, nil
	}
	if err != nil {
		if key != "" && apperror.IsUniqueViolation(err) {
			// Lost the insert race to a request carrying the same key.
			if existing, ferr := s.payouts.GetByIdempotencyKey(ctx, req.VendorID, key); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if key != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempotencyCacheKey(req.VendorID, key), []byte(payout.ID.String()), s.settings.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("payout_id", payout.ID.String()).Msg("failed to cache idempotency key")
		}
	}

	now := s.now()
	s.notifier.Emit(ctx, domain.NewPayoutNotification(domain.NotifyPayoutRequested, payout, now))
	if autoApproved {
		s.notifier.Emit(ctx, domain.NewPayoutNotification(domain.NotifyPayoutApproved, payout, now))
	}
	return payout, nil
}

func (s *PayoutServiceImpl) requestPayout(ctx context.Context, req ports.RequestPayoutInput) (*domain.PayoutRequest, bool, error) {
	cfg, err := s.config.GetActive(ctx)
	if err != nil {
		return nil, false, err
	}
	if req.Amount.LessThan(cfg.MinPayoutAmount) {
		return nil, false, apperror.Validation("amount must be at least min_payout_amount " + cfg.MinPayoutAmount.StringFixed(domain.MoneyScale))
	}
	if req.Amount.GreaterThan(cfg.MaxPayoutAmount) {
		return nil, false, apperror.Validation("amount must not exceed max_payout_amount " + cfg.MaxPayoutAmount.StringFixed(domain.MoneyScale))
	}

	fees := domain.ComputeFees(req.Amount, cfg)
	if !fees.FinalAmount.IsPositive() {
		return nil, false, apperror.Validation("amount does not cover fees")
	}

	method, err := s.methods.GetByID(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, false, apperror.FromDB("get payment method", err)
	}
	if method == nil || method.VendorID != req.VendorID || !method.IsActive {
		return nil, false, apperror.ErrNotFound("Payment method")
	}
	if !method.IsPayable() {
		return nil, false, apperror.ErrUnverifiedPaymentMethod()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.ledger.Lock(ctx, dbTx, req.VendorID); err != nil {
		return nil, false, err
	}

	// A same-key request may have committed while this one waited on the
	// wallet lock.
	if req.IdempotencyKey != "" {
		existing, err := s.payouts.GetByIdempotencyKey(ctx, req.VendorID, req.IdempotencyKey)
		if err != nil {
			return nil, false, apperror.FromDB("get payout by idempotency key", err)
		}
		if existing != nil {
			return existing, false, errReplayed
		}
	}

	now := s.now()
	if err := s.limits.Check(ctx, dbTx, req.VendorID, req.Amount, cfg, now); err != nil {
		return nil, false, err
	}

	payout := &domain.PayoutRequest{
		ID:              uuid.New(),
		RequestNumber:   domain.NewRequestNumber(),
		VendorID:        req.VendorID,
		PaymentMethodID: req.PaymentMethodID,
		RequestedAmount: req.Amount,
		Status:          domain.PayoutPending,
		VendorNotes:     domain.StringPtr(req.VendorNotes),
		IdempotencyKey:  domain.StringPtr(req.IdempotencyKey),
		RequestedAt:     now,
		UpdatedAt:       now,
	}
	payout.ApplyFees(fees)

	if _, err := s.ledger.Reserve(ctx, dbTx, req.VendorID, req.Amount, ports.LedgerRef{
		Type:        domain.ReferencePayout,
		ID:          payout.ID.String(),
		Description: "Payout " + payout.RequestNumber + " reserved",
	}); err != nil {
		return nil, false, err
	}

	autoApproved := cfg.AutoApproves(req.Amount)
	if autoApproved {
		amount := req.Amount
		approver := domain.SystemActor.ID
		payout.Status = domain.PayoutApproved
		payout.ApprovedAmount = &amount
		payout.ApprovedBy = &approver
		payout.ApprovedAt = &now
	}

	if err := s.payouts.Create(ctx, dbTx, payout); err != nil {
		return nil, false, apperror.FromDB("insert payout", err)
	}

	entry := domain.NewPayoutAuditEntry(payout, domain.AuditPayoutRequested, "", domain.Actor{ID: req.VendorID, Type: domain.ActorVendor}, req.VendorNotes)
	entry.Metadata["auto_approved"] = autoApproved
	entry.Metadata["payment_method_id"] = req.PaymentMethodID.String()
	if err := s.audit.Record(ctx, dbTx, entry); err != nil {
		return nil, false, apperror.FromDB("record audit", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("request_number", payout.RequestNumber).
		Str("vendor_id", req.VendorID.String()).
		Str("amount", req.Amount.StringFixed(domain.MoneyScale)).
		Str("status", string(payout.Status)).
		Msg("payout requested")

	return payout, autoApproved, nil
}

// findByIdempotencyKey checks Redis first and falls back to the database.
func (s *PayoutServiceImpl) findByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, idempotencyCacheKey(vendorID, key))
		if err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency cache unavailable")
		} else if cached != nil {
			if id, perr := uuid.ParseBytes(cached); perr == nil {
				payout, err := s.payouts.GetByID(ctx, id)
				if err != nil {
					return nil, apperror.FromDB("get payout", err)
				}
				if payout != nil && payout.VendorID == vendorID {
					return payout, nil
				}
			}
		}
	}

	payout, err := s.payouts.GetByIdempotencyKey(ctx, vendorID, key)
	if err != nil {
		return nil, apperror.FromDB("get payout by idempotency key", err)
	}
	return payout, nil
}

// claim marks key as in flight so a concurrent duplicate fails fast instead of
// queueing on the wallet lock. Without Redis the unique index is the only guard.
func (s *PayoutServiceImpl) claim(ctx context.Context, vendorID uuid.UUID, key string) (func(), error) {
	noop := func() {}
	if s.idempCache == nil {
		return noop, nil
	}

	cacheKey := idempotencyCacheKey(vendorID, key)
	ok, err := s.idempCache.Claim(ctx, cacheKey, s.claimTTL())
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency claim unavailable")
		return noop, nil
	}
	if !ok {
		return nil, apperror.ErrConflict(errors.New("a request with this idempotency key is in progress"))
	}
	return func() {
		if err := s.idempCache.Unclaim(context.WithoutCancel(ctx), cacheKey); err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency claim")
		}
	}, nil
}

func (s *PayoutServiceImpl) claimTTL() time.Duration {
	if s.settings.OperationTimeout > 0 {
		return 2 * s.settings.OperationTimeout
	}
	return 30 * time.Second
}

// ==================== Transitions ====================

// transition describes one admin operation on an existing payout.
type transition struct {
	action domain.PayoutAction
	audit  domain.AuditAction
	notify domain.NotificationType
	notes  string
	// replay reports whether the payout already reflects this operation.
	replay func(p *domain.PayoutRequest) bool
	apply  func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest, now time.Time) error
}

// Approve moves a pending payout to approved. A lower approvedAmount returns
// the difference to the vendor's available balance and recomputes fees.
func (s *PayoutServiceImpl) Approve(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, approvedAmount *decimal.Decimal, adminNotes string) (*domain.PayoutRequest, error) {
	if approvedAmount != nil {
		if !approvedAmount.IsPositive() {
			return nil, apperror.Validation("approved_amount must be positive")
		}
		if !domain.HasMoneyScale(*approvedAmount) {
			return nil, apperror.Validation("approved_amount must have at most 2 decimal places")
		}
	}

	return s.transition(ctx, actor, payoutID, transition{
		action: domain.ActionApprove,
		audit:  domain.AuditPayoutApproved,
		notify: domain.NotifyPayoutApproved,
		notes:  adminNotes,
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest, now time.Time) error {
			amount := p.RequestedAmount
			if approvedAmount != nil {
				amount = *approvedAmount
			}
			if amount.GreaterThan(p.RequestedAmount) {
				return apperror.ErrExceedsReservedAmount()
			}

			if amount.LessThan(p.RequestedAmount) {
				cfg, err := s.config.GetActive(ctx)
				if err != nil {
					return err
				}
				fees := domain.ComputeFees(amount, cfg)
				if !fees.FinalAmount.IsPositive() {
					return apperror.Validation("amount does not cover fees")
				}
				if _, err := s.ledger.Adjust(ctx, tx, p.VendorID, p.RequestedAmount.Sub(amount), ports.LedgerRef{
					Type:        domain.ReferencePayout,
					ID:          p.ID.String(),
					Description: "Payout " + p.RequestNumber + " approved for a lower amount",
				}); err != nil {
					return err
				}
				p.ApplyFees(fees)
			}

			p.ApprovedAmount = &amount
			p.ApprovedBy = &actor.ID
			p.ApprovedAt = &now
			if adminNotes != "" {
				p.AdminNotes = &adminNotes
			}
			return nil
		},
	})
}

// Reject returns the reserved amount to available.
func (s *PayoutServiceImpl) Reject(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, reason string) (*domain.PayoutRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.Validation("rejection reason is required")
	}

	return s.transition(ctx, actor, payoutID, transition{
		action: domain.ActionReject,
		audit:  domain.AuditPayoutRejected,
		notify: domain.NotifyPayoutRejected,
		notes:  reason,
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest, now time.Time) error {
			if _, err := s.ledger.Release(ctx, tx, p.VendorID, p.ReservedAmount(), ports.LedgerRef{
				Type:        domain.ReferencePayout,
				ID:          p.ID.String(),
				Description: "Payout " + p.RequestNumber + " rejected",
			}); err != nil {
				return err
			}
			p.RejectionReason = &reason
			p.RejectedAt = &now
			return nil
		},
	})
}

// MarkProcessing records that the transfer has been started. Balances are untouched.
func (s *PayoutServiceImpl) MarkProcessing(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, adminNotes string) (*domain.PayoutRequest, error) {
	return s.transition(ctx, actor, payoutID, transition{
		action: domain.ActionProcess,
		audit:  domain.AuditPayoutProcessing,
		notify: domain.NotifyPayoutProcessing,
		notes:  adminNotes,
		apply: func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, now time.Time) error {
			p.ProcessingAt = &now
			p.ProcessedBy = &actor.ID
			if adminNotes != "" {
				p.AdminNotes = &adminNotes
			}
			return nil
		},
	})
}

// MarkPaid settles the payout. Repeating it with the same transaction id is a no-op.
func (s *PayoutServiceImpl) MarkPaid(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, req ports.MarkPaidInput) (*domain.PayoutRequest, error) {
	if req.TransactionID == "" {
		return nil, apperror.Validation("transaction_id is required")
	}

	return s.transition(ctx, actor, payoutID, transition{
		action: domain.ActionPay,
		audit:  domain.AuditPayoutPaid,
		notify: domain.NotifyPayoutPaid,
		notes:  req.AdminNotes,
		replay: func(p *domain.PayoutRequest) bool {
			return p.Status == domain.PayoutPaid && p.TransactionID != nil && *p.TransactionID == req.TransactionID
		},
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest, now time.Time) error {
			if _, err := s.ledger.Commit(ctx, tx, p.VendorID, p.ReservedAmount(), p.FinalAmount, ports.LedgerRef{
				Type:        domain.ReferencePayout,
				ID:          p.ID.String(),
				Description: "Payout " + p.RequestNumber + " paid",
			}); err != nil {
				return err
			}
			txID := req.TransactionID
			p.TransactionID = &txID
			p.ReferenceNumber = domain.StringPtr(req.ReferenceNumber)
			p.PaidAt = &now
			if p.ProcessedBy == nil {
				p.ProcessedBy = &actor.ID
			}
			if req.AdminNotes != "" {
				notes := req.AdminNotes
				p.AdminNotes = &notes
			}
			return nil
		},
	})
}

// transition locks the payout row, then (inside apply) the wallet row. On
// failure it returns the payout as it was before the attempt.
func (s *PayoutServiceImpl) transition(ctx context.Context, actor domain.Actor, payoutID uuid.UUID, t transition) (*domain.PayoutRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return s.fail(ctx, payoutID, nil, t.action, apperror.FromDB("begin tx", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payouts.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return s.fail(ctx, payoutID, nil, t.action, apperror.FromDB("lock payout", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("Payout")
	}

	before := payout.Clone()
	if t.replay != nil && t.replay(payout) {
		s.log.Info().
			Str("payout_id", payoutID.String()).
			Str("action", string(t.action)).
			Msg("payout transition replayed")
		return before, nil
	}

	from := payout.Status
	to := t.action.Target()
	if !from.CanTransitionTo(to) {
		return s.fail(ctx, payoutID, before, t.action, apperror.ErrInvalidTransition(string(from), string(t.action)))
	}

	now := s.now()
	if err := t.apply(ctx, dbTx, payout, now); err != nil {
		return s.fail(ctx, payoutID, before, t.action, err)
	}
	payout.Status = to
	payout.UpdatedAt = now

	if err := s.payouts.Update(ctx, dbTx, payout); err != nil {
		return s.fail(ctx, payoutID, before, t.action, apperror.FromDB("update payout", err))
	}
	if err := s.audit.Record(ctx, dbTx, domain.NewPayoutAuditEntry(payout, t.audit, from, actor, t.notes)); err != nil {
		return s.fail(ctx, payoutID, before, t.action, apperror.FromDB("record audit", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return s.fail(ctx, payoutID, before, t.action, apperror.FromDB("commit tx", err))
	}

	s.log.Info().
		Str("payout_id", payoutID.String()).
		Str("request_number", payout.RequestNumber).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_id", actor.ID.String()).
		Msg("payout transitioned")

	s.notifier.Emit(ctx, domain.NewPayoutNotification(t.notify, payout, now))
	return payout, nil
}

// fail logs err and pairs it with the persisted payout. When the row could not
// be read under lock it is re-read without one.
func (s *PayoutServiceImpl) fail(ctx context.Context, payoutID uuid.UUID, before *domain.PayoutRequest, action domain.PayoutAction, err error) (*domain.PayoutRequest, error) {
	evt := s.log.Warn()
	if apperror.HasCode(err, apperror.CodeInternal) || apperror.HasCode(err, apperror.CodeInvariantViolation) {
		evt = s.log.Error()
	}
	evt.Err(err).
		Str("payout_id", payoutID.String()).
		Str("action", string(action)).
		Msg("payout transition failed")

	if before == nil {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if current, rerr := s.payouts.GetByID(readCtx, payoutID); rerr == nil {
			before = current
		}
	}
	return before, err
}
