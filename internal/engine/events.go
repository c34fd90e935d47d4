package engine

import (
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// EventType names one of the engine's six observable transitions, one per
// instruction. These mirror the original program's emit! events.
type EventType string

const (
	EventMarketOpened   EventType = "market_opened"
	EventStakePlaced    EventType = "stake_placed"
	EventMarketSettled  EventType = "market_settled"
	EventPayoutClaimed  EventType = "payout_claimed"
	EventMarketCancelled EventType = "market_cancelled"
	EventRefundClaimed  EventType = "refund_claimed"
)

// Event is a single append-only record of an engine transition. Fields
// outside of a given EventType's concern are left zero.
type Event struct {
	Type      EventType
	MarketID  ident.ID
	TicketID  ident.ID // zero for market-level events
	Principal string
	Outcome   Outcome
	Amount    uint64 // stake amount (Staked) or refund amount (Refunded)
	OddsABP   uint64
	Gross     uint64 // EventPayoutClaimed: ticket.PotentialPayout before the fee
	Fee       uint64 // EventPayoutClaimed: platform rake taken out of Gross
	Net       uint64 // EventPayoutClaimed: amount actually paid to the owner
	At        time.Time
}
