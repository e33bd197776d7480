package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places money is stored with.
const MoneyScale = 2

// RoundMoney rounds half away from zero to two places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// HasMoneyScale reports whether d needs no more than two decimal places.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// FeeBreakdown is the split of a payout amount into deductions and net.
type FeeBreakdown struct {
	Amount        decimal.Decimal `json:"amount"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	TDSAmount     decimal.Decimal `json:"tds_amount"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

// ComputeFees applies the configuration's fee and tax rules to amount.
// Fee and tax are rounded before the final amount is derived, so
// Amount == ProcessingFee + TDSAmount + FinalAmount holds exactly.
func ComputeFees(amount decimal.Decimal, cfg *PayoutConfiguration) FeeBreakdown {
	fee := RoundMoney(decimal.Max(amount.Mul(cfg.ProcessingFeePercentage), cfg.ProcessingFeeFixed))
	tds := RoundMoney(amount.Mul(cfg.TDSPercentage))
	return FeeBreakdown{
		Amount:        amount,
		ProcessingFee: fee,
		TDSAmount:     tds,
		FinalAmount:   RoundMoney(amount.Sub(fee).Sub(tds)),
	}
}
