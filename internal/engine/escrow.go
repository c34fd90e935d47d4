package engine

import (
	"github.com/opinionlabs/settlement-engine/internal/engine/fixedpoint"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// Escrow custodies a market's staked funds. It exposes exactly three
// value-preserving primitives, and they are the only way balances move, so
// the sum of everything ever credited always equals the sum of everything
// ever debited plus the current balance. Funds that no claim or refund
// debits (losing stakes on a settled market) stay in the balance.
type Escrow struct {
	ID       ident.ID
	MarketID ident.ID
	Balance  uint64
}

// Credit adds amount into the escrow, as happens when a stake is placed.
func (e *Escrow) Credit(amount uint64) error {
	next, err := fixedpoint.AddU64(e.Balance, amount)
	if err != nil {
		return newErr(CodeMathOverflow, "escrow credit overflow")
	}
	e.Balance = next
	return nil
}

// DebitTo removes amount from the escrow in full, as happens on a single
// claim or refund.
func (e *Escrow) DebitTo(amount uint64) error {
	next, err := fixedpoint.SubU64(e.Balance, amount)
	if err != nil {
		return newErr(CodeMathOverflow, "escrow debit exceeds balance")
	}
	e.Balance = next
	return nil
}

// SplitDebitTo removes payout+fee from the escrow as a single atomic
// debit, as happens when ClaimPayout carves a winning ticket's payout out
// alongside the platform's rake. Keeping the two as one debit
// (rather than two sequential debits) keeps the conservation check exact
// even when payout+fee would individually round differently than their sum.
func (e *Escrow) SplitDebitTo(payout, fee uint64) error {
	total, err := fixedpoint.AddU64(payout, fee)
	if err != nil {
		return newErr(CodeMathOverflow, "split debit overflow")
	}
	return e.DebitTo(total)
}
