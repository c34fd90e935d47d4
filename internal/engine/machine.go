package engine

import (
	"context"
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine/fixedpoint"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// Engine is the sole writer of market, ticket, and escrow state. Every
// instruction is dispatched through one of its methods. Open and Stake first
// check the shape of their inputs (string lengths, outcome value, principal
// format); each method then runs its precondition checks in a fixed order
// (existence, identity, state, time, amount bounds, index/identity
// uniqueness, math). Every check runs before the first store write, so a rejected instruction
// leaves no partial state. The writes themselves are separate store calls
// with no enclosing transaction: a store failure partway through an
// instruction leaves the writes made before it in place.
type Engine struct {
	Markets MarketStore
	Tickets TicketStore
	Escrows EscrowStore
	Events  EventSink

	// Now returns the current time; overridable in tests.
	Now func() time.Time

	locks *lockRegistry
}

// New constructs an Engine over the given stores.
func New(markets MarketStore, tickets TicketStore, escrows EscrowStore, events EventSink) *Engine {
	return &Engine{
		Markets: markets,
		Tickets: tickets,
		Escrows: escrows,
		Events:  events,
		Now:     time.Now,
		locks:   newLockRegistry(),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func checkIDLength(s string, max int) error {
	if len(s) == 0 || len(s) > max {
		return newErr(CodeIdentifierTooLong, "identifier length %d exceeds bound %d", len(s), max)
	}
	return nil
}

// checkPrincipal validates that s is an acceptable Authority/Owner value
// before it is ever hashed into a derived id or persisted.
func checkPrincipal(s string) error {
	if !ident.ValidPrincipal(s) {
		return newErr(CodeInvalidPrincipal, "%q is not a valid principal", s)
	}
	return nil
}

// OpenRequest opens a new market.
type OpenRequest struct {
	ExternalID string
	Title      string
	LabelA     string
	LabelB     string
	Authority  string
	EndsAt     time.Time
}

// Open creates a market in the Open state with empty pools and even odds.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*Market, error) {
	if err := checkIDLength(req.ExternalID, MaxExternalIDLen); err != nil {
		return nil, err
	}
	if err := checkIDLength(req.Title, MaxTitleLen); err != nil {
		return nil, err
	}
	if err := checkIDLength(req.LabelA, MaxLabelLen); err != nil {
		return nil, err
	}
	if err := checkIDLength(req.LabelB, MaxLabelLen); err != nil {
		return nil, err
	}
	if err := checkPrincipal(req.Authority); err != nil {
		return nil, err
	}

	marketID := ident.Market(req.ExternalID)
	unlock := e.locks.acquire(string(marketID))
	defer unlock()

	existing, err := e.Markets.GetMarket(ctx, marketID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, newErr(CodeIndexConflict, "market %s already exists", req.ExternalID)
	}

	m := &Market{
		ID:              marketID,
		ExternalID:      req.ExternalID,
		Title:           req.Title,
		LabelA:          req.LabelA,
		LabelB:          req.LabelB,
		Status:          MarketOpen,
		OddsABP:         5_000,
		NextTicketIndex: 0,
		Authority:       req.Authority,
		CreatedAt:       e.now(),
		EndsAt:          req.EndsAt,
	}

	escrowID := ident.Escrow(marketID)
	esc := &Escrow{ID: escrowID, MarketID: marketID}

	if err := e.Markets.PutMarket(ctx, m); err != nil {
		return nil, err
	}
	if err := e.Escrows.PutEscrow(ctx, esc); err != nil {
		return nil, err
	}
	e.emit(ctx, Event{Type: EventMarketOpened, MarketID: marketID, At: m.CreatedAt})

	return m, nil
}

// StakeRequest places a stake on one outcome of an open market.
type StakeRequest struct {
	ExternalID        string
	Principal         string
	ClientTicketIndex uint64
	Outcome           Outcome
	Amount            uint64
}

// Stake records a principal's bet and reprices the market's odds.
func (e *Engine) Stake(ctx context.Context, req StakeRequest) (*Ticket, error) {
	if !req.Outcome.Valid() {
		return nil, newErr(CodeInvalidState, "invalid outcome %d", req.Outcome)
	}
	if req.Amount < MinStake {
		return nil, newErr(CodeStakeBelowMin, "stake %d below minimum %d", req.Amount, MinStake)
	}
	if req.Amount > MaxStake {
		return nil, newErr(CodeStakeAboveMax, "stake %d above maximum %d", req.Amount, MaxStake)
	}
	if err := checkPrincipal(req.Principal); err != nil {
		return nil, err
	}

	marketID := ident.Market(req.ExternalID)
	unlock := e.locks.acquire(string(marketID))
	defer unlock()

	m, err := e.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != MarketOpen {
		return nil, newErr(CodeInvalidState, "market %s is not open", req.ExternalID)
	}
	if !e.now().Before(m.EndsAt) {
		return nil, newErr(CodeMarketEnded, "market %s has ended", req.ExternalID)
	}

	if req.ClientTicketIndex != m.NextTicketIndex {
		return nil, newErr(CodeIndexConflict, "client ticket index %d does not match market's next index %d", req.ClientTicketIndex, m.NextTicketIndex)
	}
	ticketID := ident.Ticket(marketID, req.Principal, req.ClientTicketIndex)

	esc, err := e.Escrows.GetEscrow(ctx, ident.Escrow(marketID))
	if err != nil {
		return nil, err
	}
	if err := esc.Credit(req.Amount); err != nil {
		return nil, err
	}

	// Odds of the outcome being backed, captured before this stake moves
	// the pools: the staker locks in the market price at entry, not the
	// post-trade price (spec §4.3).
	oddsAtPurchase := m.OddsABP
	if req.Outcome == OutcomeB {
		oddsAtPurchase = BPDenominator - m.OddsABP
	}
	potentialPayout, err := fixedpoint.MulDivU64(req.Amount, BPDenominator, oddsAtPurchase)
	if err != nil {
		return nil, newErr(CodeMathOverflow, "potential payout overflow")
	}

	switch req.Outcome {
	case OutcomeA:
		next, err := fixedpoint.AddU64(m.PoolA, req.Amount)
		if err != nil {
			return nil, newErr(CodeMathOverflow, "pool A overflow")
		}
		m.PoolA = next
	case OutcomeB:
		next, err := fixedpoint.AddU64(m.PoolB, req.Amount)
		if err != nil {
			return nil, newErr(CodeMathOverflow, "pool B overflow")
		}
		m.PoolB = next
	}

	newOdds, err := RepriceAfterStake(MarketStatusOdds{PoolA: m.PoolA, PoolB: m.PoolB})
	if err != nil {
		return nil, err
	}
	m.OddsABP = newOdds
	m.NextTicketIndex++

	t := &Ticket{
		ID:                ticketID,
		MarketID:          marketID,
		Principal:         req.Principal,
		ClientTicketIndex: req.ClientTicketIndex,
		Outcome:           req.Outcome,
		Amount:            req.Amount,
		OddsAtPurchase:    oddsAtPurchase,
		PotentialPayout:   potentialPayout,
		Status:            TicketActive,
		CreatedAt:         e.now(),
	}

	if err := e.Escrows.PutEscrow(ctx, esc); err != nil {
		return nil, err
	}
	if err := e.Markets.PutMarket(ctx, m); err != nil {
		return nil, err
	}
	if err := e.Tickets.PutTicket(ctx, t); err != nil {
		return nil, err
	}
	e.emit(ctx, Event{Type: EventStakePlaced, MarketID: marketID, TicketID: ticketID, Principal: req.Principal, Outcome: req.Outcome, Amount: req.Amount, OddsABP: newOdds, At: t.CreatedAt})

	return t, nil
}

// SettleRequest resolves an ended market to a winning outcome.
type SettleRequest struct {
	ExternalID     string
	Authority      string
	WinningOutcome Outcome
}

// Settle transitions an ended market to Settled and records the winner.
func (e *Engine) Settle(ctx context.Context, req SettleRequest) (*Market, error) {
	if !req.WinningOutcome.Valid() {
		return nil, newErr(CodeInvalidState, "invalid winning outcome %d", req.WinningOutcome)
	}

	marketID := ident.Market(req.ExternalID)
	unlock := e.locks.acquire(string(marketID))
	defer unlock()

	m, err := e.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Authority != req.Authority {
		return nil, newErr(CodeUnauthorized, "principal %s may not settle market %s", req.Authority, req.ExternalID)
	}
	if m.Status != MarketOpen {
		return nil, newErr(CodeInvalidState, "market %s is not open", req.ExternalID)
	}
	if e.now().Before(m.EndsAt) {
		return nil, newErr(CodeMarketNotEnded, "market %s has not yet ended", req.ExternalID)
	}

	m.Status = MarketSettled
	m.WinningOutcome = req.WinningOutcome
	m.HasWinner = true
	settledAt := e.now()
	m.SettledAt = &settledAt

	if err := e.Markets.PutMarket(ctx, m); err != nil {
		return nil, err
	}
	e.emit(ctx, Event{Type: EventMarketSettled, MarketID: marketID, Outcome: req.WinningOutcome, At: settledAt})

	return m, nil
}

// CancelRequest cancels an open market, making every ticket refundable.
type CancelRequest struct {
	ExternalID string
	Authority  string
}

// Cancel transitions an open market to Cancelled.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*Market, error) {
	marketID := ident.Market(req.ExternalID)
	unlock := e.locks.acquire(string(marketID))
	defer unlock()

	m, err := e.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Authority != req.Authority {
		return nil, newErr(CodeUnauthorized, "principal %s may not cancel market %s", req.Authority, req.ExternalID)
	}
	if m.Status != MarketOpen {
		return nil, newErr(CodeInvalidState, "market %s is not open", req.ExternalID)
	}

	m.Status = MarketCancelled

	if err := e.Markets.PutMarket(ctx, m); err != nil {
		return nil, err
	}
	e.emit(ctx, Event{Type: EventMarketCancelled, MarketID: marketID, At: e.now()})

	return m, nil
}

// ClaimPayoutRequest claims a winning ticket's payout. Treasury is the
// principal credited with the platform fee taken out of the payout.
type ClaimPayoutRequest struct {
	ExternalID string
	Principal  string
	TicketID   ident.ID
	Treasury   string
}

// ClaimPayout pays out a winning ticket exactly once. The gross payout was
// already locked in at stake time (Ticket.PotentialPayout, computed from
// the pre-trade odds); claiming never recomputes it from the market's
// final pool ratios, it only splits the locked-in gross amount between the
// owner and the treasury's fee cut. The ticket's status is the sole source
// of truth for whether it has already been claimed; the transition from
// Active to Claimed is one-shot and terminal.
func (e *Engine) ClaimPayout(ctx context.Context, req ClaimPayoutRequest) (uint64, error) {
	if err := checkPrincipal(req.Treasury); err != nil {
		return 0, err
	}

	marketID := ident.Market(req.ExternalID)
	unlock := e.locks.acquire(string(marketID))
	defer unlock()

	m, err := e.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	t, err := e.Tickets.GetTicket(ctx, req.TicketID)
	if err != nil {
		return 0, err
	}
	if t.MarketID != marketID {
		return 0, newErr(CodeInvalidState, "ticket %s does not belong to market %s", req.TicketID, req.ExternalID)
	}
	if t.Principal != req.Principal {
		return 0, newErr(CodeTicketNotOwned, "ticket %s is not owned by %s", req.TicketID, req.Principal)
	}
	if m.Status != MarketSettled {
		return 0, newErr(CodeMarketNotSettled, "market %s is not settled", req.ExternalID)
	}
	if t.Status != TicketActive {
		return 0, newErr(CodeTicketNotActive, "ticket %s is not active", req.TicketID)
	}
	if t.Outcome != m.WinningOutcome {
		return 0, newErr(CodeTicketDidNotWin, "ticket %s did not back the winning outcome", req.TicketID)
	}

	gross := t.PotentialPayout
	fee, err := fixedpoint.BpOf(gross, FeeBP)
	if err != nil {
		return 0, newErr(CodeMathOverflow, "fee computation overflow")
	}
	net, err := fixedpoint.SubU64(gross, fee)
	if err != nil {
		return 0, newErr(CodeMathOverflow, "net payout underflow")
	}

	esc, err := e.Escrows.GetEscrow(ctx, ident.Escrow(marketID))
	if err != nil {
		return 0, err
	}
	if err := esc.SplitDebitTo(net, fee); err != nil {
		return 0, err
	}

	t.Status = TicketClaimed
	resolvedAt := e.now()
	t.ResolvedAt = &resolvedAt

	if err := e.Escrows.PutEscrow(ctx, esc); err != nil {
		return 0, err
	}
	if err := e.Tickets.PutTicket(ctx, t); err != nil {
		return 0, err
	}
	e.emit(ctx, Event{Type: EventPayoutClaimed, MarketID: marketID, TicketID: t.ID, Principal: req.Principal, Gross: gross, Fee: fee, Net: net, At: resolvedAt})

	return net, nil
}

// ClaimRefundRequest refunds a ticket from a cancelled market.
type ClaimRefundRequest struct {
	ExternalID string
	Principal  string
	TicketID   ident.ID
}

// ClaimRefund returns a ticket's stake in full when its market was
// cancelled, enforcing the same one-shot claim guard as ClaimPayout.
func (e *Engine) ClaimRefund(ctx context.Context, req ClaimRefundRequest) (uint64, error) {
	marketID := ident.Market(req.ExternalID)
	unlock := e.locks.acquire(string(marketID))
	defer unlock()

	m, err := e.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	t, err := e.Tickets.GetTicket(ctx, req.TicketID)
	if err != nil {
		return 0, err
	}
	if t.MarketID != marketID {
		return 0, newErr(CodeInvalidState, "ticket %s does not belong to market %s", req.TicketID, req.ExternalID)
	}
	if t.Principal != req.Principal {
		return 0, newErr(CodeTicketNotOwned, "ticket %s is not owned by %s", req.TicketID, req.Principal)
	}
	if m.Status != MarketCancelled {
		return 0, newErr(CodeMarketNotCancelled, "market %s is not cancelled", req.ExternalID)
	}
	if t.Status != TicketActive {
		return 0, newErr(CodeTicketNotActive, "ticket %s is not active", req.TicketID)
	}

	esc, err := e.Escrows.GetEscrow(ctx, ident.Escrow(marketID))
	if err != nil {
		return 0, err
	}
	if err := esc.DebitTo(t.Amount); err != nil {
		return 0, err
	}

	t.Status = TicketRefunded
	resolvedAt := e.now()
	t.ResolvedAt = &resolvedAt

	if err := e.Escrows.PutEscrow(ctx, esc); err != nil {
		return 0, err
	}
	if err := e.Tickets.PutTicket(ctx, t); err != nil {
		return 0, err
	}
	e.emit(ctx, Event{Type: EventRefundClaimed, MarketID: marketID, TicketID: t.ID, Principal: req.Principal, Amount: t.Amount, At: resolvedAt})

	return t.Amount, nil
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.Events == nil {
		return
	}
	// Event emission is best-effort relative to the state transition it
	// describes: a sink failure never unwinds a committed transition.
	_ = e.Events.Append(ctx, ev)
}

func isNotFound(err error) bool {
	en, ok := AsError(err)
	return ok && en.Code == CodeNotFound
}
