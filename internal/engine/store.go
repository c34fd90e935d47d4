package engine

import (
	"context"

	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// MarketStore persists Market records. Implementations (postgres, or an
// in-memory double for tests) are the engine's only path to durable state;
// the engine never caches a market across calls.
type MarketStore interface {
	GetMarket(ctx context.Context, id ident.ID) (*Market, error)
	PutMarket(ctx context.Context, m *Market) error
}

// TicketStore persists Ticket records. It offers no lookup by (market,
// principal, client index); Stake deduplicates through the market's
// NextTicketIndex instead.
type TicketStore interface {
	GetTicket(ctx context.Context, id ident.ID) (*Ticket, error)
	PutTicket(ctx context.Context, t *Ticket) error
	ListTicketsByMarket(ctx context.Context, marketID ident.ID) ([]*Ticket, error)
}

// EscrowStore persists Escrow records, one per market.
type EscrowStore interface {
	GetEscrow(ctx context.Context, id ident.ID) (*Escrow, error)
	PutEscrow(ctx context.Context, e *Escrow) error
}

// EventSink receives the engine's append-only event log. The engine never
// reads events back; a sink only ever appends.
type EventSink interface {
	Append(ctx context.Context, ev Event) error
}

// ErrNotFound is returned by a store when the requested record does not
// exist.
var ErrNotFound = newErr(CodeNotFound, "record not found")
