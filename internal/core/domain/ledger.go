package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrLedgerMismatch is returned when a transaction log does not reproduce itself.
var ErrLedgerMismatch = errors.New("ledger mismatch")

// LedgerState is the pair of balances a transaction log determines.
type LedgerState struct {
	Available decimal.Decimal
	Pending   decimal.Decimal
}

// Total is available plus pending.
func (s LedgerState) Total() decimal.Decimal {
	return s.Available.Add(s.Pending)
}

// Apply moves funds as the transaction's operation dictates.
func (s LedgerState) Apply(t WalletTransaction) (LedgerState, error) {
	if !t.Amount.IsPositive() {
		return s, fmt.Errorf("%w: transaction %s has non-positive amount %s", ErrLedgerMismatch, t.ID, t.Amount)
	}

	switch t.Operation {
	case OpCredit:
		s.Available = s.Available.Add(t.Amount)
	case OpReserve:
		s.Available = s.Available.Sub(t.Amount)
		s.Pending = s.Pending.Add(t.Amount)
	case OpRelease:
		s.Pending = s.Pending.Sub(t.Amount)
		s.Available = s.Available.Add(t.Amount)
	case OpCommit:
		s.Pending = s.Pending.Sub(t.Amount)
	case OpAdjust:
		if t.Type == TransactionCredit {
			s.Pending = s.Pending.Sub(t.Amount)
			s.Available = s.Available.Add(t.Amount)
		} else {
			s.Available = s.Available.Sub(t.Amount)
			s.Pending = s.Pending.Add(t.Amount)
		}
	default:
		return s, fmt.Errorf("%w: transaction %s has unknown operation %q", ErrLedgerMismatch, t.ID, t.Operation)
	}

	if s.Available.IsNegative() || s.Pending.IsNegative() {
		return s, fmt.Errorf("%w: transaction %s drives balance negative", ErrLedgerMismatch, t.ID)
	}
	return s, nil
}

// ReplayLedger rebuilds balances from zero, checking every row's snapshot.
// txs must be in the order they were written.
func ReplayLedger(txs []WalletTransaction) (LedgerState, error) {
	state := LedgerState{Available: decimal.Zero, Pending: decimal.Zero}
	for _, t := range txs {
		if !t.BalanceBefore.Equal(state.Available) {
			return state, fmt.Errorf("%w: transaction %s balance_before %s, replay has %s",
				ErrLedgerMismatch, t.ID, t.BalanceBefore, state.Available)
		}
		next, err := state.Apply(t)
		if err != nil {
			return state, err
		}
		if !t.BalanceAfter.Equal(next.Available) || !t.PendingAfter.Equal(next.Pending) {
			return state, fmt.Errorf("%w: transaction %s snapshot %s/%s, replay has %s/%s",
				ErrLedgerMismatch, t.ID, t.BalanceAfter, t.PendingAfter, next.Available, next.Pending)
		}
		state = next
	}
	return state, nil
}
