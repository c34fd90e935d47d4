package engine

// Tunables governing stake bounds, fee and smoothing basis points, and
// identifier length limits. Values match the original on-chain program's
// constants; SMOOTH_BP and the clamp bounds are carried over from the
// redesigned AMM pricing rule (see pricing.go).
const (
	MinStake uint64 = 10_000_000
	MaxStake uint64 = 100_000_000_000

	FeeBP uint64 = 200

	SmoothBP    uint64 = 1_000
	ClampLowBP  uint64 = 500
	ClampHighBP uint64 = 9_500

	BPDenominator uint64 = 10_000

	MaxExternalIDLen = 32
	MaxTitleLen      = 200
	MaxLabelLen      = 100
)
