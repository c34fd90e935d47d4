package engine

import (
	"context"
	"testing"
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// Test principals are valid-shaped EVM addresses; the engine now validates
// Authority/Principal shape on Open and Stake (see ident.ValidPrincipal).
const (
	alice   = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
	bob     = "0xb2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2"
	carol   = "0xc3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3"
	mallory = "0xd4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4d4"
)

func newTestEngine(now time.Time) (*Engine, *memoryStore) {
	store := newMemoryStore()
	e := New(store, store, store, store)
	e.Now = func() time.Time { return now }
	return e, store
}

func mustOpen(t *testing.T, e *Engine, ends time.Time) *Market {
	m, err := e.Open(context.Background(), OpenRequest{
		ExternalID: "poll-1",
		Title:      "Will it rain",
		LabelA:     "Yes",
		LabelB:     "No",
		Authority:  alice,
		EndsAt:     ends,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestOpenCreatesEvenOdds(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	m := mustOpen(t, e, now.Add(time.Hour))
	if m.Status != MarketOpen {
		t.Fatalf("status = %s, want open", m.Status)
	}
	if m.OddsABP != 5_000 {
		t.Fatalf("odds = %d, want 5000", m.OddsABP)
	}
}

func TestOpenRejectsDuplicateExternalID(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(time.Hour))

	_, err := e.Open(context.Background(), OpenRequest{
		ExternalID: "poll-1",
		Title:      "dup",
		LabelA:     "Yes",
		LabelB:     "No",
		Authority:  alice,
		EndsAt:     now.Add(time.Hour),
	})
	en, ok := AsError(err)
	if !ok || en.Code != CodeIndexConflict {
		t.Fatalf("err = %v, want index_conflict", err)
	}
}

func TestStakeBelowMinRejected(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(time.Hour))

	_, err := e.Stake(context.Background(), StakeRequest{
		ExternalID:        "poll-1",
		Principal:         bob,
		ClientTicketIndex: 0,
		Outcome:           OutcomeA,
		Amount:            MinStake - 1,
	})
	en, ok := AsError(err)
	if !ok || en.Code != CodeStakeBelowMin {
		t.Fatalf("err = %v, want stake_below_min", err)
	}
}

// TestStakeWithStaleIndexFailsIndexConflict reproduces spec scenario S3:
// two concurrent stakes both submitted with client_ticket_index=0. The
// first commits and advances next_ticket_index to 1; the second, still
// carrying the stale index, must fail IndexConflict rather than silently
// returning the first ticket as a no-op success.
func TestStakeWithStaleIndexFailsIndexConflict(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(time.Hour))

	req := StakeRequest{ExternalID: "poll-1", Principal: bob, ClientTicketIndex: 0, Outcome: OutcomeA, Amount: MinStake}
	t1, err := e.Stake(context.Background(), req)
	if err != nil {
		t.Fatalf("first stake: %v", err)
	}

	_, err = e.Stake(context.Background(), req)
	en, ok := AsError(err)
	if !ok || en.Code != CodeIndexConflict {
		t.Fatalf("second stake err = %v, want index_conflict", err)
	}

	tickets, err := e.Tickets.(*memoryStore).ListTicketsByMarket(context.Background(), t1.MarketID)
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("got %d tickets, want exactly 1 (no duplication)", len(tickets))
	}
}

func TestStakeAfterEndRejected(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(-time.Hour))

	_, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: bob, ClientTicketIndex: 0, Outcome: OutcomeA, Amount: MinStake,
	})
	en, ok := AsError(err)
	if !ok || en.Code != CodeMarketEnded {
		t.Fatalf("err = %v, want market_ended", err)
	}
}

func TestSettleBeforeEndRejected(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(time.Hour))

	_, err := e.Settle(context.Background(), SettleRequest{ExternalID: "poll-1", Authority: alice, WinningOutcome: OutcomeA})
	en, ok := AsError(err)
	if !ok || en.Code != CodeMarketNotEnded {
		t.Fatalf("err = %v, want market_not_ended", err)
	}
}

func TestSettleByNonAuthorityRejected(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(-time.Second))

	_, err := e.Settle(context.Background(), SettleRequest{ExternalID: "poll-1", Authority: mallory, WinningOutcome: OutcomeA})
	en, ok := AsError(err)
	if !ok || en.Code != CodeUnauthorized {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

// TestFullLifecyclePayoutConservesEscrow exercises open -> stake x2 ->
// settle -> claim_payout and checks that the payout to the winner never
// exceeds what the escrow actually holds.
func TestFullLifecyclePayoutConservesEscrow(t *testing.T) {
	now := time.Now()
	e, store := newTestEngine(now.Add(-2 * time.Hour))
	mustOpen(t, e, now.Add(-time.Hour))

	winner, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: bob, ClientTicketIndex: 0, Outcome: OutcomeA, Amount: MinStake,
	})
	if err != nil {
		t.Fatalf("stake A: %v", err)
	}
	_, err = e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: carol, ClientTicketIndex: 1, Outcome: OutcomeB, Amount: MinStake * 3,
	})
	if err != nil {
		t.Fatalf("stake B: %v", err)
	}

	e.Now = func() time.Time { return now }
	if _, err := e.Settle(context.Background(), SettleRequest{ExternalID: "poll-1", Authority: alice, WinningOutcome: OutcomeA}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	payout, err := e.ClaimPayout(context.Background(), ClaimPayoutRequest{ExternalID: "poll-1", Principal: bob, TicketID: winner.ID, Treasury: mallory})
	if err != nil {
		t.Fatalf("claim payout: %v", err)
	}
	if payout <= winner.Amount {
		t.Fatalf("payout %d did not exceed the original stake %d", payout, winner.Amount)
	}

	esc, err := store.GetEscrow(context.Background(), ident.Escrow(winner.MarketID))
	if err != nil && !errorHasCode(err, CodeNotFound) {
		t.Fatalf("unexpected escrow lookup error: %v", err)
	}
	if esc != nil && esc.Balance > MinStake*4 {
		t.Fatalf("escrow balance %d exceeds everything ever credited", esc.Balance)
	}
}

func errorHasCode(err error, code Code) bool {
	en, ok := AsError(err)
	return ok && en.Code == code
}

func TestClaimPayoutTwiceFailsSecondTime(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now.Add(-2 * time.Hour))
	mustOpen(t, e, now.Add(-time.Hour))

	winner, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: bob, ClientTicketIndex: 0, Outcome: OutcomeA, Amount: MinStake,
	})
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	// The winner entered at 5000bp, so its gross payout is twice its stake;
	// a losing stake puts enough in the escrow to cover it.
	if _, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: carol, ClientTicketIndex: 1, Outcome: OutcomeB, Amount: MinStake * 3,
	}); err != nil {
		t.Fatalf("losing stake: %v", err)
	}

	e.Now = func() time.Time { return now }
	if _, err := e.Settle(context.Background(), SettleRequest{ExternalID: "poll-1", Authority: alice, WinningOutcome: OutcomeA}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if _, err := e.ClaimPayout(context.Background(), ClaimPayoutRequest{ExternalID: "poll-1", Principal: bob, TicketID: winner.ID, Treasury: mallory}); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	_, err = e.ClaimPayout(context.Background(), ClaimPayoutRequest{ExternalID: "poll-1", Principal: bob, TicketID: winner.ID, Treasury: mallory})
	en, ok := AsError(err)
	if !ok || en.Code != CodeTicketNotActive {
		t.Fatalf("second claim err = %v, want ticket_not_active", err)
	}
}

func TestLoserCannotClaimPayout(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now.Add(-2 * time.Hour))
	mustOpen(t, e, now.Add(-time.Hour))

	loser, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: carol, ClientTicketIndex: 0, Outcome: OutcomeB, Amount: MinStake,
	})
	if err != nil {
		t.Fatalf("stake: %v", err)
	}

	e.Now = func() time.Time { return now }
	if _, err := e.Settle(context.Background(), SettleRequest{ExternalID: "poll-1", Authority: alice, WinningOutcome: OutcomeA}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, err = e.ClaimPayout(context.Background(), ClaimPayoutRequest{ExternalID: "poll-1", Principal: carol, TicketID: loser.ID})
	en, ok := AsError(err)
	if !ok || en.Code != CodeTicketDidNotWin {
		t.Fatalf("err = %v, want ticket_did_not_win", err)
	}
}

func TestCancelThenRefund(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(time.Hour))

	ticket, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: bob, ClientTicketIndex: 0, Outcome: OutcomeA, Amount: MinStake,
	})
	if err != nil {
		t.Fatalf("stake: %v", err)
	}

	if _, err := e.Cancel(context.Background(), CancelRequest{ExternalID: "poll-1", Authority: alice}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	refund, err := e.ClaimRefund(context.Background(), ClaimRefundRequest{ExternalID: "poll-1", Principal: bob, TicketID: ticket.ID})
	if err != nil {
		t.Fatalf("claim refund: %v", err)
	}
	if refund != ticket.Amount {
		t.Fatalf("refund %d != staked amount %d", refund, ticket.Amount)
	}
}

func TestRefundOnOpenMarketRejected(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(now)
	mustOpen(t, e, now.Add(time.Hour))

	ticket, err := e.Stake(context.Background(), StakeRequest{
		ExternalID: "poll-1", Principal: bob, ClientTicketIndex: 0, Outcome: OutcomeA, Amount: MinStake,
	})
	if err != nil {
		t.Fatalf("stake: %v", err)
	}

	_, err = e.ClaimRefund(context.Background(), ClaimRefundRequest{ExternalID: "poll-1", Principal: bob, TicketID: ticket.ID})
	en, ok := AsError(err)
	if !ok || en.Code != CodeMarketNotCancelled {
		t.Fatalf("err = %v, want market_not_cancelled", err)
	}
}
