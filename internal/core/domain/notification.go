package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType names an event delivered to a vendor.
type NotificationType string

const (
	NotifyPayoutRequested       NotificationType = "payout_requested"
	NotifyPayoutApproved        NotificationType = "payout_approved"
	NotifyPayoutRejected        NotificationType = "payout_rejected"
	NotifyPayoutProcessing      NotificationType = "payout_processing"
	NotifyPayoutPaid            NotificationType = "payout_paid"
	NotifyPaymentMethodVerified NotificationType = "payment_method_verified"
	NotifyPaymentMethodRejected NotificationType = "payment_method_rejected"
)

// NotificationEvent is an in-app message for a vendor.
type NotificationEvent struct {
	ID        uuid.UUID        `json:"id"`
	VendorID  uuid.UUID        `json:"vendor_id"`
	PayoutID  *uuid.UUID       `json:"payout_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewPayoutNotification builds the event for a payout status change.
func NewPayoutNotification(t NotificationType, p *PayoutRequest, now time.Time) *NotificationEvent {
	payoutID := p.ID
	amount := p.RequestedAmount
	if p.ApprovedAmount != nil {
		amount = *p.ApprovedAmount
	}
	meta := map[string]any{
		"payout_id":      p.ID.String(),
		"request_number": p.RequestNumber,
		"amount":         amount.StringFixed(MoneyScale),
		"final_amount":   p.FinalAmount.StringFixed(MoneyScale),
		"status":         string(p.Status),
	}

	var title, msg string
	switch t {
	case NotifyPayoutRequested:
		title = "Payout requested"
		msg = fmt.Sprintf("Your payout request %s for %s has been received.", p.RequestNumber, amount.StringFixed(MoneyScale))
	case NotifyPayoutApproved:
		title = "Payout approved"
		msg = fmt.Sprintf("Your payout request %s for %s has been approved.", p.RequestNumber, amount.StringFixed(MoneyScale))
	case NotifyPayoutRejected:
		title = "Payout rejected"
		reason := ""
		if p.RejectionReason != nil {
			reason = *p.RejectionReason
			meta["reason"] = reason
		}
		msg = fmt.Sprintf("Your payout request %s was rejected: %s", p.RequestNumber, reason)
	case NotifyPayoutProcessing:
		title = "Payout processing"
		msg = fmt.Sprintf("Your payout %s is being processed.", p.RequestNumber)
	case NotifyPayoutPaid:
		title = "Payout paid"
		msg = fmt.Sprintf("%s has been sent for payout %s.", p.FinalAmount.StringFixed(MoneyScale), p.RequestNumber)
		if p.TransactionID != nil {
			meta["transaction_id"] = *p.TransactionID
		}
	}

	return &NotificationEvent{
		ID:        uuid.New(),
		VendorID:  p.VendorID,
		PayoutID:  &payoutID,
		Type:      t,
		Title:     title,
		Message:   msg,
		Metadata:  meta,
		CreatedAt: now,
	}
}

// NewPaymentMethodNotification builds the event for a verification decision.
func NewPaymentMethodNotification(m *PaymentMethod, now time.Time) *NotificationEvent {
	ev := &NotificationEvent{
		ID:       uuid.New(),
		VendorID: m.VendorID,
		Metadata: map[string]any{
			"payment_method_id": m.ID.String(),
			"masked_account":    m.MaskedAccount,
		},
		CreatedAt: now,
	}
	if m.VerificationStatus == VerificationVerified {
		ev.Type = NotifyPaymentMethodVerified
		ev.Title = "Payment method verified"
		ev.Message = fmt.Sprintf("Payment method %s is verified and can receive payouts.", m.MaskedAccount)
		return ev
	}
	ev.Type = NotifyPaymentMethodRejected
	ev.Title = "Payment method rejected"
	reason := ""
	if m.RejectionReason != nil {
		reason = *m.RejectionReason
		ev.Metadata["reason"] = reason
	}
	ev.Message = fmt.Sprintf("Payment method %s was rejected: %s", m.MaskedAccount, reason)
	return ev
}
