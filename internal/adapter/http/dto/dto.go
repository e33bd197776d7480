package dto

import (
	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Amounts travel as strings so no float ever touches money. Free-text notes
// and reasons are tagged sanitize:"trim": they are stored verbatim and
// escaped by whatever renders them.

// RequestPayoutRequest is the body of POST /vendor/payouts.
type RequestPayoutRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required,uuid"`
	Amount          string `json:"amount" binding:"required,money"`
	VendorNotes     string `json:"vendor_notes" binding:"max=500" sanitize:"trim"`
}

// ApprovePayoutRequest approves a payout, optionally for a lower amount.
type ApprovePayoutRequest struct {
	ApprovedAmount *string `json:"approved_amount,omitempty" binding:"omitempty,money"`
	AdminNotes     string  `json:"admin_notes" binding:"max=1000" sanitize:"trim"`
}

type RejectPayoutRequest struct {
	Reason string `json:"reason" binding:"required,max=500" sanitize:"trim"`
}

type MarkProcessingRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=1000" sanitize:"trim"`
}

// MarkPaidRequest records the settlement reference supplied by the operator.
type MarkPaidRequest struct {
	TransactionID   string `json:"transaction_id" binding:"required,max=100,safe_id"`
	ReferenceNumber string `json:"reference_number" binding:"omitempty,max=100,safe_id"`
	AdminNotes      string `json:"admin_notes" binding:"max=1000" sanitize:"trim"`
}

// ToInput converts the body to the service input.
func (r MarkPaidRequest) ToInput() ports.MarkPaidInput {
	return ports.MarkPaidInput{
		TransactionID:   r.TransactionID,
		ReferenceNumber: r.ReferenceNumber,
		AdminNotes:      r.AdminNotes,
	}
}

// AddPaymentMethodRequest carries plaintext account details. Format checks
// beyond presence happen in the service so every entry point shares them.
type AddPaymentMethodRequest struct {
	MethodType        string `json:"method_type" binding:"required,oneof=bank_account upi"`
	AccountHolderName string `json:"account_holder_name" binding:"required,max=200"`
	AccountNumber     string `json:"account_number" binding:"required_if=MethodType bank_account,max=32"`
	IFSCCode          string `json:"ifsc_code" binding:"required_if=MethodType bank_account,max=11"`
	UPIID             string `json:"upi_id" binding:"required_if=MethodType upi,max=320"`
}

func (r AddPaymentMethodRequest) ToInput() ports.AddPaymentMethodInput {
	return ports.AddPaymentMethodInput{
		MethodType:        domain.PaymentMethodType(r.MethodType),
		AccountHolderName: r.AccountHolderName,
		AccountNumber:     r.AccountNumber,
		IFSCCode:          r.IFSCCode,
		UPIID:             r.UPIID,
	}
}

type RejectPaymentMethodRequest struct {
	Reason string `json:"reason" binding:"required,max=500" sanitize:"trim"`
}

// CreditWalletRequest is the body of POST /admin/vendors/:vendor_id/wallet/credit.
type CreditWalletRequest struct {
	Amount        string `json:"amount" binding:"required,money"`
	Category      string `json:"category" binding:"required,oneof=order_settlement adjustment"`
	ReferenceType string `json:"reference_type" binding:"omitempty,max=50,safe_id"`
	ReferenceID   string `json:"reference_id" binding:"omitempty,max=100,safe_id"`
	Description   string `json:"description" binding:"max=500" sanitize:"trim"`
}

// PayoutConfigRequest replaces the active payout configuration.
// Percentages are fractions (0.005 is half a percent).
type PayoutConfigRequest struct {
	MinPayoutAmount         string `json:"min_payout_amount" binding:"required,money"`
	MaxPayoutAmount         string `json:"max_payout_amount" binding:"required,money"`
	DailyPayoutLimit        string `json:"daily_payout_limit" binding:"required,nonneg_decimal"`
	MonthlyPayoutLimit      string `json:"monthly_payout_limit" binding:"required,nonneg_decimal"`
	ProcessingFeePercentage string `json:"processing_fee_percentage" binding:"required,nonneg_decimal"`
	ProcessingFeeFixed      string `json:"processing_fee_fixed" binding:"required,nonneg_decimal"`
	TDSPercentage           string `json:"tds_percentage" binding:"required,nonneg_decimal"`
	AutoApprovalLimit       string `json:"auto_approval_limit" binding:"required,nonneg_decimal"`
}

// ToConfig parses every field. The binding tags have already checked them.
func (r PayoutConfigRequest) ToConfig() (*domain.PayoutConfiguration, error) {
	cfg := &domain.PayoutConfiguration{}
	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{r.MinPayoutAmount, &cfg.MinPayoutAmount},
		{r.MaxPayoutAmount, &cfg.MaxPayoutAmount},
		{r.DailyPayoutLimit, &cfg.DailyPayoutLimit},
		{r.MonthlyPayoutLimit, &cfg.MonthlyPayoutLimit},
		{r.ProcessingFeePercentage, &cfg.ProcessingFeePercentage},
		{r.ProcessingFeeFixed, &cfg.ProcessingFeeFixed},
		{r.TDSPercentage, &cfg.TDSPercentage},
		{r.AutoApprovalLimit, &cfg.AutoApprovalLimit},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return cfg, nil
}

// WalletResponse is the vendor's balance view.
type WalletResponse struct {
	VendorID         string  `json:"vendor_id"`
	AvailableBalance string  `json:"available_balance"`
	PendingBalance   string  `json:"pending_balance"`
	TotalBalance     string  `json:"total_balance"`
	TotalEarnings    string  `json:"total_earnings"`
	TotalPayouts     string  `json:"total_payouts"`
	LastPayoutAt     *string `json:"last_payout_at,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// NewWalletResponse renders balances with two decimals.
func NewWalletResponse(w *domain.WalletBalance) WalletResponse {
	resp := WalletResponse{
		VendorID:         w.VendorID.String(),
		AvailableBalance: w.AvailableBalance.StringFixed(domain.MoneyScale),
		PendingBalance:   w.PendingBalance.StringFixed(domain.MoneyScale),
		TotalBalance:     w.Total().StringFixed(domain.MoneyScale),
		TotalEarnings:    w.TotalEarnings.StringFixed(domain.MoneyScale),
		TotalPayouts:     w.TotalPayouts.StringFixed(domain.MoneyScale),
	}
	if w.LastPayoutAt != nil {
		s := w.LastPayoutAt.UTC().Format(timeLayout)
		resp.LastPayoutAt = &s
	}
	return resp
}
