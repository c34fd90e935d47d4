package engine

import "testing"

func TestRepriceAfterStakeEvenPoolsStaysAtFiftyFifty(t *testing.T) {
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 100, PoolB: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5_000 {
		t.Fatalf("got %d, want 5000", got)
	}
}

func TestRepriceAfterStakeMovesTowardEvenOdds(t *testing.T) {
	// raw ratio here is 9000bp (900/1000); smoothing at 10% pulls it 10% of
	// the way back toward 5000bp: (900*9000 + 1000*500) / 1000 = 8600.
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 900, PoolB: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8_600 {
		t.Fatalf("got %d, want 8600", got)
	}
}

func TestRepriceAfterStakeClampsHigh(t *testing.T) {
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 1_000_000, PoolB: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ClampHighBP {
		t.Fatalf("got %d, want clamp high %d", got, ClampHighBP)
	}
}

func TestRepriceAfterStakeClampsLow(t *testing.T) {
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 0, PoolB: 1_000_000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ClampLowBP {
		t.Fatalf("got %d, want clamp low %d", got, ClampLowBP)
	}
}

func TestRepriceAfterStakeNoStakesYetIsEvenOdds(t *testing.T) {
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 0, PoolB: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5_000 {
		t.Fatalf("got %d, want 5000", got)
	}
}

// TestRepriceAfterStakeReproducesScenarioS1 reproduces spec scenario S1's
// first stake literally: a single 1_000_000_000 stake on A into an empty
// market must reprice odds_a to 9500.
func TestRepriceAfterStakeReproducesScenarioS1(t *testing.T) {
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 1_000_000_000, PoolB: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 9_500 {
		t.Fatalf("got %d, want 9500", got)
	}
}

// TestRepriceAfterStakeReproducesScenarioS1SecondStake reproduces S1's second stake:
// 2_000_000_000 more staked on B brings the pool to (1e9, 2e9), and odds_a
// must land on exactly 3500 — not 3499, which is what a formula that
// floors the raw ratio to bp before smoothing would produce.
func TestRepriceAfterStakeReproducesScenarioS1SecondStake(t *testing.T) {
	got, err := RepriceAfterStake(MarketStatusOdds{PoolA: 1_000_000_000, PoolB: 2_000_000_000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3_500 {
		t.Fatalf("got %d, want 3500", got)
	}
}
