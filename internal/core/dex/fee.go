package dex

import "github.com/shopspring/decimal"

// DefaultTradingFeeBps is the default output fee in basis points (0.3%),
// matching the reference behavior.
const DefaultTradingFeeBps = 30

var bpsDenominator = decimal.NewFromInt(10_000)

// FeePolicy fixes how swaps are charged. The policy is a flat output fee:
// the constant-product formula runs fee-free (reserves and price follow the
// pure invariant), then the fee is withheld from the computed output before
// transfer and accrued to the market's fee bucket. Identical for buy and
// sell.
type FeePolicy struct {
	OutputBps int64
}

// DefaultFeePolicy returns the 30 bps output fee policy.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{OutputBps: DefaultTradingFeeBps}
}

// Apply splits a gross swap output into the net amount paid out and the
// withheld fee.
func (p FeePolicy) Apply(out decimal.Decimal) (net, fee decimal.Decimal) {
	if p.OutputBps <= 0 {
		return out, decimal.Zero
	}
	fee = out.Mul(decimal.NewFromInt(p.OutputBps)).Div(bpsDenominator)
	return out.Sub(fee), fee
}
