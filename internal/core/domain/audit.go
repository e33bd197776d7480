package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an audited state change.
type AuditAction string

const (
	AuditPayoutRequested       AuditAction = "payout_requested"
	AuditPayoutApproved        AuditAction = "payout_approved"
	AuditPayoutRejected        AuditAction = "payout_rejected"
	AuditPayoutProcessing      AuditAction = "payout_processing"
	AuditPayoutPaid            AuditAction = "payout_paid"
	AuditPaymentMethodCreated  AuditAction = "payment_method_created"
	AuditPaymentMethodVerified AuditAction = "payment_method_verified"
	AuditPaymentMethodRejected AuditAction = "payment_method_rejected"
	AuditPaymentMethodRemoved  AuditAction = "payment_method_removed"
	AuditWalletCredited        AuditAction = "wallet_credited"
	AuditPayoutConfigActivated AuditAction = "payout_config_activated"
)

// AuditLogEntry is one immutable record of who changed what.
type AuditLogEntry struct {
	ID              uuid.UUID      `json:"id"`
	PayoutID        *uuid.UUID     `json:"payout_id,omitempty"`
	PaymentMethodID *uuid.UUID     `json:"payment_method_id,omitempty"`
	VendorID        *uuid.UUID     `json:"vendor_id,omitempty"`
	Action          AuditAction    `json:"action"`
	OldStatus       *string        `json:"old_status,omitempty"`
	NewStatus       *string        `json:"new_status,omitempty"`
	PerformedBy     uuid.UUID      `json:"performed_by"`
	PerformedByType ActorType      `json:"performed_by_type"`
	Notes           *string        `json:"notes,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// NewPayoutAuditEntry records a payout status change.
func NewPayoutAuditEntry(p *PayoutRequest, action AuditAction, from PayoutStatus, actor Actor, notes string) *AuditLogEntry {
	payoutID, vendorID := p.ID, p.VendorID
	var old *string
	if from != "" {
		s := string(from)
		old = &s
	}
	newStatus := string(p.Status)
	return &AuditLogEntry{
		ID:              uuid.New(),
		PayoutID:        &payoutID,
		VendorID:        &vendorID,
		Action:          action,
		OldStatus:       old,
		NewStatus:       &newStatus,
		PerformedBy:     actor.ID,
		PerformedByType: actor.Type,
		Notes:           StringPtr(notes),
		Metadata: map[string]any{
			"request_number":   p.RequestNumber,
			"requested_amount": p.RequestedAmount.StringFixed(MoneyScale),
			"final_amount":     p.FinalAmount.StringFixed(MoneyScale),
		},
	}
}
