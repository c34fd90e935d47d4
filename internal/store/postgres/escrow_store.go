package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opinionlabs/settlement-engine/internal/engine"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// EscrowStore implements engine.EscrowStore using PostgreSQL.
type EscrowStore struct {
	pool *pgxpool.Pool
}

// NewEscrowStore creates a new EscrowStore backed by the given connection pool.
func NewEscrowStore(pool *pgxpool.Pool) *EscrowStore {
	return &EscrowStore{pool: pool}
}

// PutEscrow inserts or updates a single escrow's balance.
func (s *EscrowStore) PutEscrow(ctx context.Context, e *engine.Escrow) error {
	const query = `
		INSERT INTO escrows (id, market_id, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance`

	_, err := s.pool.Exec(ctx, query, string(e.ID), string(e.MarketID), int64(e.Balance))
	if err != nil {
		return fmt.Errorf("postgres: put escrow %s: %w", e.ID, err)
	}
	return nil
}

// GetEscrow retrieves an escrow by its derived id.
func (s *EscrowStore) GetEscrow(ctx context.Context, id ident.ID) (*engine.Escrow, error) {
	var e engine.Escrow
	var escrowID, marketID string
	var balance int64

	err := s.pool.QueryRow(ctx, `SELECT id, market_id, balance FROM escrows WHERE id = $1`, string(id)).
		Scan(&escrowID, &marketID, &balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get escrow %s: %w", id, err)
	}

	e.ID = ident.ID(escrowID)
	e.MarketID = ident.ID(marketID)
	e.Balance = uint64(balance)
	return &e, nil
}
