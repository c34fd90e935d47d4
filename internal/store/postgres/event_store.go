package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opinionlabs/settlement-engine/internal/engine"
)

// EventStore implements engine.EventSink using PostgreSQL. It's a pure
// append sink: the engine never queries engine_events back through it.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append records a single engine event.
func (s *EventStore) Append(ctx context.Context, ev engine.Event) error {
	const query = `
		INSERT INTO engine_events (
			event_type, market_id, ticket_id, principal, outcome, amount, odds_a_bp, gross, fee, net, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var ticketID *string
	if ev.TicketID != "" {
		v := string(ev.TicketID)
		ticketID = &v
	}
	var principal *string
	if ev.Principal != "" {
		principal = &ev.Principal
	}

	_, err := s.pool.Exec(ctx, query,
		string(ev.Type), string(ev.MarketID), ticketID, principal,
		int16(ev.Outcome), int64(ev.Amount), int64(ev.OddsABP),
		int64(ev.Gross), int64(ev.Fee), int64(ev.Net), ev.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.Type, err)
	}
	return nil
}
