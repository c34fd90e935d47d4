package engine

import (
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// Ticket is a principal's stake on one outcome of a market. Its id is a
// pure function of (market id, principal, client ticket index). A client
// that retries a stake request after it was committed gets IndexConflict,
// because the market's NextTicketIndex has moved past that index, so no
// duplicate ticket is minted.
type Ticket struct {
	ID                ident.ID
	MarketID          ident.ID
	Principal         string
	ClientTicketIndex uint64
	Outcome           Outcome
	Amount            uint64
	OddsAtPurchase    uint64 // odds of the backed outcome, captured pre-trade
	PotentialPayout   uint64 // gross payout if this ticket wins, locked in at stake time
	Status            TicketStatus
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}
