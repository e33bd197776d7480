package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletBalance is a vendor's spendable and reserved funds.
type WalletBalance struct {
	VendorID         uuid.UUID       `json:"vendor_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalPayouts     decimal.Decimal `json:"total_payouts"`
	LastPayoutAt     *time.Time      `json:"last_payout_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Total is available plus pending.
func (w *WalletBalance) Total() decimal.Decimal {
	return w.AvailableBalance.Add(w.PendingBalance)
}

// NewWalletBalance returns an empty wallet for a vendor.
func NewWalletBalance(vendorID uuid.UUID, now time.Time) *WalletBalance {
	return &WalletBalance{
		VendorID:         vendorID,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		TotalEarnings:    decimal.Zero,
		TotalPayouts:     decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TransactionType is the direction of a ledger row relative to available funds.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionCategory classifies why money moved.
type TransactionCategory string

const (
	CategoryPayout          TransactionCategory = "payout"
	CategoryRefund          TransactionCategory = "refund"
	CategoryAdjustment      TransactionCategory = "adjustment"
	CategoryOrderSettlement TransactionCategory = "order_settlement"
	CategoryCommission      TransactionCategory = "commission"
	CategoryFee             TransactionCategory = "fee"
)

// LedgerOperation names the ledger primitive that produced a row.
type LedgerOperation string

const (
	OpCredit  LedgerOperation = "credit"
	OpReserve LedgerOperation = "reserve"
	OpRelease LedgerOperation = "release"
	OpCommit  LedgerOperation = "commit"
	OpAdjust  LedgerOperation = "adjust"
)

// Reference types used on ledger rows.
const (
	ReferencePayout = "payout"
	ReferenceOrder  = "order"
	ReferenceManual = "manual"
)

// WalletTransaction is an immutable ledger row. BalanceBefore/BalanceAfter
// snapshot the available balance, PendingAfter the pending balance.
type WalletTransaction struct {
	ID            uuid.UUID           `json:"id"`
	VendorID      uuid.UUID           `json:"vendor_id"`
	Type          TransactionType     `json:"type"`
	Category      TransactionCategory `json:"category"`
	Operation     LedgerOperation     `json:"operation"`
	Amount        decimal.Decimal     `json:"amount"`
	BalanceBefore decimal.Decimal     `json:"balance_before"`
	BalanceAfter  decimal.Decimal     `json:"balance_after"`
	PendingAfter  decimal.Decimal     `json:"pending_after"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`
	Description   string              `json:"description"`
	CreatedAt     time.Time           `json:"created_at"`
}
