package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opinionlabs/settlement-engine/internal/engine"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// MarketStore implements engine.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, external_id, title, label_a, label_b,
	status, pool_a, pool_b, odds_a_bp, next_ticket_index, authority,
	winning_outcome, has_winner, created_at, ends_at, settled_at`

// PutMarket inserts or updates a single market.
func (s *MarketStore) PutMarket(ctx context.Context, m *engine.Market) error {
	const query = `
		INSERT INTO markets (` + marketCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status            = EXCLUDED.status,
			pool_a            = EXCLUDED.pool_a,
			pool_b            = EXCLUDED.pool_b,
			odds_a_bp         = EXCLUDED.odds_a_bp,
			next_ticket_index = EXCLUDED.next_ticket_index,
			winning_outcome   = EXCLUDED.winning_outcome,
			has_winner        = EXCLUDED.has_winner,
			settled_at        = EXCLUDED.settled_at`

	var winningOutcome *int16
	if m.HasWinner {
		v := int16(m.WinningOutcome)
		winningOutcome = &v
	}

	_, err := s.pool.Exec(ctx, query,
		string(m.ID), m.ExternalID, m.Title, m.LabelA, m.LabelB,
		string(m.Status), int64(m.PoolA), int64(m.PoolB), int64(m.OddsABP), int64(m.NextTicketIndex), m.Authority,
		winningOutcome, m.HasWinner, m.CreatedAt, m.EndsAt, m.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put market %s: %w", m.ExternalID, err)
	}
	return nil
}

// scanMarket scans a single market row into an engine.Market.
func scanMarket(row pgx.Row) (*engine.Market, error) {
	var m engine.Market
	var id, status string
	var poolA, poolB, oddsABP, nextTicketIndex int64
	var winningOutcome *int16

	err := row.Scan(
		&id, &m.ExternalID, &m.Title, &m.LabelA, &m.LabelB,
		&status, &poolA, &poolB, &oddsABP, &nextTicketIndex, &m.Authority,
		&winningOutcome, &m.HasWinner, &m.CreatedAt, &m.EndsAt, &m.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	m.ID = ident.ID(id)
	m.Status = engine.MarketStatus(status)
	m.PoolA = uint64(poolA)
	m.PoolB = uint64(poolB)
	m.OddsABP = uint64(oddsABP)
	m.NextTicketIndex = uint64(nextTicketIndex)
	if winningOutcome != nil {
		m.WinningOutcome = engine.Outcome(*winningOutcome)
	}
	return &m, nil
}

// GetMarket retrieves a market by its derived id.
func (s *MarketStore) GetMarket(ctx context.Context, id ident.ID) (*engine.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, string(id))
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetMarketByExternalID retrieves a market by its caller-supplied external
// identifier, for read surfaces that haven't derived the id themselves yet.
func (s *MarketStore) GetMarketByExternalID(ctx context.Context, externalID string) (*engine.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE external_id = $1`, externalID)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get market by external id %s: %w", externalID, err)
	}
	return m, nil
}

// ListArchivable returns settled or cancelled markets that resolved before
// the given cutoff, the candidate set the archiver sweeps periodically.
// Cancelled markets have no SettledAt, so EndsAt stands in for their
// resolution time.
func (s *MarketStore) ListArchivable(ctx context.Context, before time.Time) ([]*engine.Market, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+marketCols+` FROM markets
		WHERE status IN ('settled', 'cancelled')
		AND COALESCE(settled_at, ends_at) <= $1
		ORDER BY COALESCE(settled_at, ends_at) ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list archivable markets: %w", err)
	}
	defer rows.Close()

	var out []*engine.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan archivable market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list archivable markets rows: %w", err)
	}
	return out, nil
}

// ListEndedOpen returns open markets whose EndsAt has already passed, the
// candidate set a settlement-prompt job sweeps periodically.
func (s *MarketStore) ListEndedOpen(ctx context.Context) ([]*engine.Market, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+marketCols+` FROM markets WHERE status = 'open' AND ends_at <= NOW() ORDER BY ends_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ended open markets: %w", err)
	}
	defer rows.Close()

	var out []*engine.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ended open market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list ended open markets rows: %w", err)
	}
	return out, nil
}
