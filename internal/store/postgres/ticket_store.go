package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opinionlabs/settlement-engine/internal/engine"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// TicketStore implements engine.TicketStore using PostgreSQL.
type TicketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore creates a new TicketStore backed by the given connection pool.
func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool}
}

const ticketCols = `id, market_id, principal, client_ticket_index,
	outcome, amount, odds_at_purchase, potential_payout, status, created_at, resolved_at`

// PutTicket inserts or updates a single ticket. The upsert is keyed on id,
// which is derived from (market_id, principal, client_ticket_index), so
// writing the same ticket again updates its status and resolved_at in place.
func (s *TicketStore) PutTicket(ctx context.Context, t *engine.Ticket) error {
	const query = `
		INSERT INTO tickets (` + ticketCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status      = EXCLUDED.status,
			resolved_at = EXCLUDED.resolved_at`

	_, err := s.pool.Exec(ctx, query,
		string(t.ID), string(t.MarketID), t.Principal, int64(t.ClientTicketIndex),
		int16(t.Outcome), int64(t.Amount), int64(t.OddsAtPurchase), int64(t.PotentialPayout), string(t.Status),
		t.CreatedAt, t.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put ticket %s: %w", t.ID, err)
	}
	return nil
}

func scanTicket(row pgx.Row) (*engine.Ticket, error) {
	var t engine.Ticket
	var id, marketID, status string
	var clientTicketIndex, amount, oddsAtPurchase, potentialPayout int64
	var outcome int16

	err := row.Scan(
		&id, &marketID, &t.Principal, &clientTicketIndex,
		&outcome, &amount, &oddsAtPurchase, &potentialPayout, &status, &t.CreatedAt, &t.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ID = ident.ID(id)
	t.MarketID = ident.ID(marketID)
	t.ClientTicketIndex = uint64(clientTicketIndex)
	t.Outcome = engine.Outcome(outcome)
	t.Amount = uint64(amount)
	t.OddsAtPurchase = uint64(oddsAtPurchase)
	t.PotentialPayout = uint64(potentialPayout)
	t.Status = engine.TicketStatus(status)
	return &t, nil
}

// GetTicket retrieves a ticket by its derived id.
func (s *TicketStore) GetTicket(ctx context.Context, id ident.ID) (*engine.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id = $1`, string(id))
	t, err := scanTicket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get ticket %s: %w", id, err)
	}
	return t, nil
}

// ListTicketsByMarket returns every ticket staked against a market, used by
// the archiver to snapshot a settled market's full ticket set.
func (s *TicketStore) ListTicketsByMarket(ctx context.Context, marketID ident.ID) ([]*engine.Ticket, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ticketCols+` FROM tickets WHERE market_id = $1 ORDER BY created_at ASC`, string(marketID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list tickets for market %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []*engine.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ticket: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tickets rows: %w", err)
	}
	return out, nil
}
