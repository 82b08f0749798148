package dex

import (
	"context"

	"github.com/shopspring/decimal"
)

// Buy swaps base currency for the market's asset. The output is priced by
// the constant-product rule against the committed reserves; the trading fee
// is withheld from the output and accrued to the market's fee bucket, so
// the reserves themselves always land exactly on the invariant curve. The
// net asset amount paid to the caller is returned.
func (e *Engine) Buy(ctx context.Context, caller, asset string, baseIn decimal.Decimal) (decimal.Decimal, error) {
	const op = "buy"

	if err := checkPositive(baseIn); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	rec, err := view.readMarket(ctx, asset)
	if err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}
	if rec == nil {
		return decimal.Zero, opErr(op, asset, ErrMarketNotFound)
	}

	tok, err := e.tokens.Resolve(asset)
	if err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	k := rec.ReserveBase.Mul(rec.ReserveAsset)
	newBase := rec.ReserveBase.Add(baseIn)
	newAsset := k.Div(newBase)
	out := rec.ReserveAsset.Sub(newAsset)
	if !out.IsPositive() {
		return decimal.Zero, opErr(op, asset, ErrSwapInvariant)
	}

	net, fee := e.fee.Apply(out)

	// Stage the new state before any funds move, so every later failure
	// has only transfers to unwind.
	rec.ReserveBase = newBase
	rec.ReserveAsset = newAsset
	rec.SpotPrice = newBase.Div(newAsset)
	rec.FeeAsset = rec.FeeAsset.Add(fee)
	if err := view.writeMarket(asset, rec); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	if err := e.base.TransferFrom(e.custody, caller, e.custody, baseIn); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}
	if err := tok.Transfer(e.custody, caller, net); err != nil {
		if refundErr := e.base.Transfer(e.custody, caller, baseIn); refundErr != nil {
			e.log.Error("refund after failed payout failed",
				"market", asset, "caller", caller, "err", refundErr)
		}
		return decimal.Zero, opErr(op, asset, err)
	}

	if err := view.commit(ctx); err != nil {
		if clawErr := tok.Transfer(caller, e.custody, net); clawErr != nil {
			e.log.Error("clawback after failed commit failed",
				"market", asset, "caller", caller, "err", clawErr)
		}
		if refundErr := e.base.Transfer(e.custody, caller, baseIn); refundErr != nil {
			e.log.Error("refund after failed commit failed",
				"market", asset, "caller", caller, "err", refundErr)
		}
		return decimal.Zero, opErr(op, asset, err)
	}

	e.log.Info("swap executed", "side", SideBuy, "asset", asset,
		"trader", caller, "in", baseIn, "out", net, "fee", fee,
		"price", rec.SpotPrice)
	e.publishSwap(SwapEvent{
		Asset:        asset,
		Account:      caller,
		Side:         SideBuy,
		AmountIn:     baseIn,
		AmountOut:    net,
		Fee:          fee,
		ReserveBase:  rec.ReserveBase,
		ReserveAsset: rec.ReserveAsset,
		SpotPrice:    rec.SpotPrice,
	})
	return net, nil
}

// Sell swaps the market's asset for base currency. Pricing mirrors Buy with
// the reserve roles swapped; the fee is withheld from the base-currency
// output.
func (e *Engine) Sell(ctx context.Context, caller, asset string, assetIn decimal.Decimal) (decimal.Decimal, error) {
	const op = "sell"

	if err := checkPositive(assetIn); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	rec, err := view.readMarket(ctx, asset)
	if err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}
	if rec == nil {
		return decimal.Zero, opErr(op, asset, ErrMarketNotFound)
	}

	tok, err := e.tokens.Resolve(asset)
	if err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	k := rec.ReserveBase.Mul(rec.ReserveAsset)
	newAsset := rec.ReserveAsset.Add(assetIn)
	newBase := k.Div(newAsset)
	out := rec.ReserveBase.Sub(newBase)
	if !out.IsPositive() {
		return decimal.Zero, opErr(op, asset, ErrSwapInvariant)
	}

	net, fee := e.fee.Apply(out)

	rec.ReserveBase = newBase
	rec.ReserveAsset = newAsset
	rec.SpotPrice = newBase.Div(newAsset)
	rec.FeeBase = rec.FeeBase.Add(fee)
	if err := view.writeMarket(asset, rec); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	if err := tok.TransferFrom(e.custody, caller, e.custody, assetIn); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}
	if err := e.base.Transfer(e.custody, caller, net); err != nil {
		if refundErr := tok.Transfer(e.custody, caller, assetIn); refundErr != nil {
			e.log.Error("refund after failed payout failed",
				"market", asset, "caller", caller, "err", refundErr)
		}
		return decimal.Zero, opErr(op, asset, err)
	}

	if err := view.commit(ctx); err != nil {
		if clawErr := e.base.Transfer(caller, e.custody, net); clawErr != nil {
			e.log.Error("clawback after failed commit failed",
				"market", asset, "caller", caller, "err", clawErr)
		}
		if refundErr := tok.Transfer(e.custody, caller, assetIn); refundErr != nil {
			e.log.Error("refund after failed commit failed",
				"market", asset, "caller", caller, "err", refundErr)
		}
		return decimal.Zero, opErr(op, asset, err)
	}

	e.log.Info("swap executed", "side", SideSell, "asset", asset,
		"trader", caller, "in", assetIn, "out", net, "fee", fee,
		"price", rec.SpotPrice)
	e.publishSwap(SwapEvent{
		Asset:        asset,
		Account:      caller,
		Side:         SideSell,
		AmountIn:     assetIn,
		AmountOut:    net,
		Fee:          fee,
		ReserveBase:  rec.ReserveBase,
		ReserveAsset: rec.ReserveAsset,
		SpotPrice:    rec.SpotPrice,
	})
	return net, nil
}

// SwapQuote is a read-only swap preview.
type SwapQuote struct {
	// AmountOut is the constant-product output net of the trading fee,
	// the amount an immediate swap of the same size would pay out.
	AmountOut decimal.Decimal `json:"amount_out"`

	// Slippage is the relative growth of the input-side reserve,
	// old/new - 1, a measure of how hard the trade leans on the pool.
	Slippage decimal.Decimal `json:"slippage"`
}

// Quote previews a swap without touching state or funds. Exactly one of
// baseIn and assetIn must be positive: baseIn previews a buy, assetIn a
// sell.
func (e *Engine) Quote(ctx context.Context, asset string, baseIn, assetIn decimal.Decimal) (SwapQuote, error) {
	const op = "quote"

	oneSided := baseIn.IsPositive() != assetIn.IsPositive()
	if !oneSided || baseIn.IsNegative() || assetIn.IsNegative() {
		return SwapQuote{}, opErr(op, asset, ErrPrecondition)
	}

	rec, err := newStateView(e.db).readMarket(ctx, asset)
	if err != nil {
		return SwapQuote{}, opErr(op, asset, err)
	}
	if rec == nil {
		return SwapQuote{}, opErr(op, asset, ErrMarketNotFound)
	}

	k := rec.ReserveBase.Mul(rec.ReserveAsset)
	if baseIn.IsPositive() {
		newBase := rec.ReserveBase.Add(baseIn)
		newAsset := k.Div(newBase)
		net, _ := e.fee.Apply(rec.ReserveAsset.Sub(newAsset))
		return SwapQuote{
			AmountOut: net,
			Slippage:  rec.ReserveAsset.Div(newAsset).Sub(decimal.NewFromInt(1)),
		}, nil
	}
	newAsset := rec.ReserveAsset.Add(assetIn)
	newBase := k.Div(newAsset)
	net, _ := e.fee.Apply(rec.ReserveBase.Sub(newBase))
	return SwapQuote{
		AmountOut: net,
		Slippage:  rec.ReserveBase.Div(newBase).Sub(decimal.NewFromInt(1)),
	}, nil
}
