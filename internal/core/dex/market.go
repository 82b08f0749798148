package dex

import (
	"context"

	"github.com/shopspring/decimal"
)

// CreateMarket opens a market for an asset against the base currency. The
// referenced token must pass the interface-conformance gate before any fund
// movement. Both deposits are pulled from the caller (who must have
// pre-approved at least these amounts to the pool custody account), the
// reserves are seeded, and exactly 100 LP shares are minted to the caller.
func (e *Engine) CreateMarket(ctx context.Context, caller, asset string, baseAmount, assetAmount decimal.Decimal) error {
	const op = "create_market"

	if err := checkPositive(baseAmount, assetAmount); err != nil {
		return opErr(op, asset, err)
	}
	if caller == "" {
		return opErr(op, asset, ErrPrecondition)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	rec, err := view.readMarket(ctx, asset)
	if err != nil {
		return opErr(op, asset, err)
	}
	if rec != nil {
		return opErr(op, asset, ErrMarketExists)
	}

	// Conformance gate runs before any fund movement.
	tok, err := e.tokens.Resolve(asset)
	if err != nil {
		return opErr(op, asset, err)
	}

	// Stage everything that can fail without moving funds first.
	newRec := &MarketRecord{
		ReserveBase:  baseAmount,
		ReserveAsset: assetAmount,
		SpotPrice:    baseAmount.Div(assetAmount),
		TotalShares:  BootstrapShares,
	}
	if err := view.writeMarket(asset, newRec); err != nil {
		return opErr(op, asset, err)
	}
	view.setLPBalance(asset, caller, BootstrapShares)

	if err := e.pullPair(tok, caller, baseAmount, assetAmount); err != nil {
		return opErr(op, asset, err)
	}

	// The counter key is shared across markets, so its read-modify-write
	// and the commit sit under their own lock: per-market locks let
	// creations of different assets interleave here.
	e.countMu.Lock()
	count, err := view.marketCount(ctx)
	if err == nil {
		view.setMarketCount(count + 1)
		err = view.commit(ctx)
	}
	e.countMu.Unlock()
	if err != nil {
		// Nothing was persisted; hand the deposits back.
		if payErr := e.payPair(tok, caller, baseAmount, assetAmount); payErr != nil {
			e.log.Error("refund after failed commit failed",
				"market", asset, "caller", caller, "err", payErr)
		}
		return opErr(op, asset, err)
	}

	e.log.Info("market created", "asset", asset, "creator", caller,
		"reserve_base", baseAmount, "reserve_asset", assetAmount)
	e.publishMarketCreated(MarketCreatedEvent{
		Asset:        asset,
		Creator:      caller,
		ReserveBase:  newRec.ReserveBase,
		ReserveAsset: newRec.ReserveAsset,
		SpotPrice:    newRec.SpotPrice,
	})
	return nil
}

// MarketExists reports whether a market has been created for the asset.
func (e *Engine) MarketExists(ctx context.Context, asset string) (bool, error) {
	rec, err := newStateView(e.db).readMarket(ctx, asset)
	return rec != nil, err
}

// MarketCount returns the number of markets created.
func (e *Engine) MarketCount(ctx context.Context) (int64, error) {
	return newStateView(e.db).marketCount(ctx)
}

// Reserves returns the committed [base, asset] reserve pair.
func (e *Engine) Reserves(ctx context.Context, asset string) (base, reserve decimal.Decimal, err error) {
	rec, err := e.market(ctx, asset)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return rec.ReserveBase, rec.ReserveAsset, nil
}

// SpotPrice returns the committed spot price (reserve_base / reserve_asset
// as of the last state change).
func (e *Engine) SpotPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	rec, err := e.market(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.SpotPrice, nil
}

// Market returns a copy of the full persisted market record.
func (e *Engine) Market(ctx context.Context, asset string) (MarketRecord, error) {
	rec, err := e.market(ctx, asset)
	if err != nil {
		return MarketRecord{}, err
	}
	return *rec, nil
}

func (e *Engine) market(ctx context.Context, asset string) (*MarketRecord, error) {
	rec, err := newStateView(e.db).readMarket(ctx, asset)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, opErr("market", asset, ErrMarketNotFound)
	}
	return rec, nil
}
