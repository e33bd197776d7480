package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutApproved   PayoutStatus = "approved"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutRejected   PayoutStatus = "rejected"
	PayoutFailed     PayoutStatus = "failed"
)

// AllPayoutStatuses lists every status, terminal ones included.
var AllPayoutStatuses = []PayoutStatus{
	PayoutPending, PayoutApproved, PayoutProcessing, PayoutPaid, PayoutRejected, PayoutFailed,
}

// Nothing leaves processing except paid, and nothing enters failed.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutApproved, PayoutRejected},
	PayoutApproved:   {PayoutProcessing, PayoutRejected},
	PayoutProcessing: {PayoutPaid},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s PayoutStatus) IsTerminal() bool {
	return len(payoutTransitions[s]) == 0
}

// IsValid reports whether s is a known status.
func (s PayoutStatus) IsValid() bool {
	for _, known := range AllPayoutStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PayoutAction is an operation of the payout state machine.
type PayoutAction string

const (
	ActionApprove PayoutAction = "approve"
	ActionReject  PayoutAction = "reject"
	ActionProcess PayoutAction = "mark_processing"
	ActionPay     PayoutAction = "mark_paid"
)

// AllPayoutActions lists the transitions an operator can request.
var AllPayoutActions = []PayoutAction{ActionApprove, ActionReject, ActionProcess, ActionPay}

// Target is the status an action moves a payout to.
func (a PayoutAction) Target() PayoutStatus {
	switch a {
	case ActionApprove:
		return PayoutApproved
	case ActionReject:
		return PayoutRejected
	case ActionProcess:
		return PayoutProcessing
	case ActionPay:
		return PayoutPaid
	}
	return ""
}

// PayoutRequest is a vendor's request to withdraw funds.
type PayoutRequest struct {
	ID              uuid.UUID        `json:"id"`
	RequestNumber   string           `json:"request_number"`
	VendorID        uuid.UUID        `json:"vendor_id"`
	PaymentMethodID uuid.UUID        `json:"payment_method_id"`
	RequestedAmount decimal.Decimal  `json:"requested_amount"`
	ApprovedAmount  *decimal.Decimal `json:"approved_amount,omitempty"`
	FinalAmount     decimal.Decimal  `json:"final_amount"`
	ProcessingFee   decimal.Decimal  `json:"processing_fee"`
	TDSAmount       decimal.Decimal  `json:"tds_amount"`
	Status          PayoutStatus     `json:"status"`
	TransactionID   *string          `json:"transaction_id,omitempty"`
	ReferenceNumber *string          `json:"reference_number,omitempty"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	VendorNotes     *string          `json:"vendor_notes,omitempty"`
	AdminNotes      *string          `json:"admin_notes,omitempty"`
	IdempotencyKey  *string          `json:"-"`
	ApprovedBy      *uuid.UUID       `json:"approved_by,omitempty"`
	ProcessedBy     *uuid.UUID       `json:"processed_by,omitempty"`
	RequestedAt     time.Time        `json:"requested_at"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	ProcessingAt    *time.Time       `json:"processing_at,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	RejectedAt      *time.Time       `json:"rejected_at,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ReservedAmount is what the ledger currently holds in pending for this payout.
func (p *PayoutRequest) ReservedAmount() decimal.Decimal {
	if p.ApprovedAmount != nil {
		return *p.ApprovedAmount
	}
	return p.RequestedAmount
}

// Clone returns a copy that shares no pointers with p.
func (p *PayoutRequest) Clone() *PayoutRequest {
	c := *p
	c.ApprovedAmount = clonePtr(p.ApprovedAmount)
	c.TransactionID = clonePtr(p.TransactionID)
	c.ReferenceNumber = clonePtr(p.ReferenceNumber)
	c.RejectionReason = clonePtr(p.RejectionReason)
	c.VendorNotes = clonePtr(p.VendorNotes)
	c.AdminNotes = clonePtr(p.AdminNotes)
	c.IdempotencyKey = clonePtr(p.IdempotencyKey)
	c.ApprovedBy = clonePtr(p.ApprovedBy)
	c.ProcessedBy = clonePtr(p.ProcessedBy)
	c.ApprovedAt = clonePtr(p.ApprovedAt)
	c.ProcessingAt = clonePtr(p.ProcessingAt)
	c.PaidAt = clonePtr(p.PaidAt)
	c.RejectedAt = clonePtr(p.RejectedAt)
	return &c
}

// ApplyFees copies a fee breakdown onto the payout.
func (p *PayoutRequest) ApplyFees(f FeeBreakdown) {
	p.ProcessingFee = f.ProcessingFee
	p.TDSAmount = f.TDSAmount
	p.FinalAmount = f.FinalAmount
}

// NewRequestNumber returns a time-sortable human reference for a payout.
func NewRequestNumber() string {
	return "PO-" + ulid.Make().String()
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
