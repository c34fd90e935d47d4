package engine

import (
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// Market is a single binary poll: two outcomes, an escrow of staked funds,
// and the running pool totals used to derive the current odds.
type Market struct {
	ID         ident.ID
	ExternalID string
	Title      string
	LabelA     string
	LabelB     string

	Status MarketStatus

	PoolA uint64
	PoolB uint64

	OddsABP uint64 // current implied probability of outcome A, in basis points

	NextTicketIndex uint64 // sole ordering token for ticket creation; see Stake

	Authority string // principal permitted to settle/cancel this market

	WinningOutcome Outcome
	HasWinner      bool

	CreatedAt time.Time
	EndsAt    time.Time
	SettledAt *time.Time
}

// TotalPool returns the combined stake across both outcomes.
func (m *Market) TotalPool() (uint64, error) {
	return addU64Checked(m.PoolA, m.PoolB)
}

func addU64Checked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, newErr(CodeMathOverflow, "pool total overflow")
	}
	return sum, nil
}
