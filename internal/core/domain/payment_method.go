package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethodType is the payout destination kind.
type PaymentMethodType string

const (
	MethodBankAccount PaymentMethodType = "bank_account"
	MethodUPI         PaymentMethodType = "upi"
)

// VerificationStatus tracks admin review of a payment method.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// PaymentMethod is a vendor's payout destination. Account details are only
// ever held encrypted; the fingerprint is a keyed hash used to spot duplicates.
type PaymentMethod struct {
	ID                 uuid.UUID          `json:"id"`
	VendorID           uuid.UUID          `json:"vendor_id"`
	MethodType         PaymentMethodType  `json:"method_type"`
	AccountHolderName  string             `json:"account_holder_name"`
	AccountNumberEnc   string             `json:"-"`
	IFSCCodeEnc        string             `json:"-"`
	UPIIDEnc           string             `json:"-"`
	AccountFingerprint string             `json:"-"`
	MaskedAccount      string             `json:"masked_account"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	RejectionReason    *string            `json:"rejection_reason,omitempty"`
	IsDefault          bool               `json:"is_default"`
	IsActive           bool               `json:"is_active"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy         *uuid.UUID         `json:"verified_by,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsPayable reports whether payouts may be sent to this method.
func (m *PaymentMethod) IsPayable() bool {
	return m.IsActive && m.VerificationStatus == VerificationVerified
}

// MaskAccount keeps the last four characters of an account identifier.
func MaskAccount(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
