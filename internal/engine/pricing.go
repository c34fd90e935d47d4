package engine

import "github.com/opinionlabs/settlement-engine/internal/engine/fixedpoint"

// RepriceAfterStake recomputes a market's implied odds for outcome A after
// a stake lands in either pool, per spec §4.3: the raw pool-ratio
// probability is smoothed a SmoothBP-weighted fraction of the way toward
// even odds (5000bp), then clamped. The result depends only on the current
// pool totals, never on whatever odds the market displayed beforehand, so
// repricing is path-independent — two markets that reach the same pools by
// different stake histories land on the same odds.
func RepriceAfterStake(current MarketStatusOdds) (uint64, error) {
	total, err := fixedpoint.AddU64(current.PoolA, current.PoolB)
	if err != nil {
		return 0, newErr(CodeMathOverflow, "pool total overflow computing odds")
	}
	if total == 0 {
		return 5_000, nil // no stakes yet: even odds, tie-break to A
	}

	smoothed, err := smoothedOddsABP(current.PoolA, total)
	if err != nil {
		return 0, err
	}

	return clampBP(smoothed, ClampLowBP, ClampHighBP), nil
}

// MarketStatusOdds is the minimal slice of market state the pricing rule
// needs: the two pool totals.
type MarketStatusOdds struct {
	PoolA, PoolB uint64
}

// smoothedOddsABP computes the smoothed implied probability of outcome A,
// in basis points, from p_A = poolA/total blended toward ½ by SmoothBP:
//
//	odds_A = p_A*(1-alpha) + 0.5*alpha,  alpha = SmoothBP/10000
//
// Multiplying through by 10000*total and collecting terms gives a single
// final division:
//
//	odds_A_bp = floor((poolA*(10000-SmoothBP) + total*(SmoothBP/2)) / total)
//
// computed in one shot rather than rounding p_A to bp first and smoothing
// that rounded value — the latter compounds two roundings and drifts off
// the exact blend (SmoothBP is even, so SmoothBP/2 is exact).
func smoothedOddsABP(poolA, total uint64) (uint64, error) {
	odds, err := fixedpoint.MulAddDivU64(poolA, BPDenominator-SmoothBP, total, SmoothBP/2, total)
	if err != nil {
		return 0, newErr(CodeMathOverflow, "odds smoothing overflow")
	}
	return odds, nil
}

// clampBP clamps bp into [low, high].
func clampBP(bp, low, high uint64) uint64 {
	if bp < low {
		return low
	}
	if bp > high {
		return high
	}
	return bp
}
