package dex

import (
	"context"

	"github.com/shopspring/decimal"
)

// AddLiquidity deposits base currency plus the matching asset leg at the
// current spot price and mints LP shares pro rata to the base contribution.
// The asset leg is derived from the spot price, so the deposit never moves
// the price.
func (e *Engine) AddLiquidity(ctx context.Context, caller, asset string, baseAmount decimal.Decimal) (decimal.Decimal, error) {
	const op = "add_liquidity"

	if err := checkPositive(baseAmount); err != nil {
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

	assetAmount := baseAmount.Div(rec.SpotPrice)
	minted := rec.TotalShares.Mul(baseAmount.Div(rec.ReserveBase))

	// Stage the new state before pulling any funds, so every later
	// failure has only transfers to unwind.
	callerShares, err := view.lpBalance(ctx, asset, caller)
	if err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}
	rec.ReserveBase = rec.ReserveBase.Add(baseAmount)
	rec.ReserveAsset = rec.ReserveAsset.Add(assetAmount)
	rec.TotalShares = rec.TotalShares.Add(minted)
	if err := view.writeMarket(asset, rec); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}
	view.setLPBalance(asset, caller, callerShares.Add(minted))

	if err := e.pullPair(tok, caller, baseAmount, assetAmount); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	if err := view.commit(ctx); err != nil {
		if payErr := e.payPair(tok, caller, baseAmount, assetAmount); payErr != nil {
			e.log.Error("refund after failed commit failed",
				"market", asset, "caller", caller, "err", payErr)
		}
		return decimal.Zero, opErr(op, asset, err)
	}

	e.log.Info("liquidity added", "asset", asset, "provider", caller,
		"base_in", baseAmount, "asset_in", assetAmount, "minted", minted)
	e.publishLiquidityChanged(LiquidityChangedEvent{
		Asset:        asset,
		Account:      caller,
		Added:        true,
		SharesDelta:  minted,
		ReserveBase:  rec.ReserveBase,
		ReserveAsset: rec.ReserveAsset,
		TotalShares:  rec.TotalShares,
	})
	return minted, nil
}

// RemoveLiquidity burns LP shares and pays out the proportional slice of
// both reserves. A removal that would leave total supply at or below the
// floor, or either reserve empty, is rejected before any payout.
func (e *Engine) RemoveLiquidity(ctx context.Context, caller, asset string, shares decimal.Decimal) (baseOut, assetOut decimal.Decimal, err error) {
	const op = "remove_liquidity"

	if err := checkPositive(shares); err != nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, err)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	rec, err := view.readMarket(ctx, asset)
	if err != nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, err)
	}
	if rec == nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, ErrMarketNotFound)
	}

	callerShares, err := view.lpBalance(ctx, asset, caller)
	if err != nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, err)
	}
	if callerShares.LessThan(shares) {
		return decimal.Zero, decimal.Zero, opErr(op, asset, ErrInsufficientBalance)
	}

	portion := shares.Div(rec.TotalShares)
	baseOut = rec.ReserveBase.Mul(portion)
	assetOut = rec.ReserveAsset.Mul(portion)

	newTotal := rec.TotalShares.Sub(shares)
	newBase := rec.ReserveBase.Sub(baseOut)
	newAsset := rec.ReserveAsset.Sub(assetOut)
	if newTotal.LessThanOrEqual(MinTotalShares) ||
		!newBase.IsPositive() || !newAsset.IsPositive() {
		return decimal.Zero, decimal.Zero, opErr(op, asset, ErrInsufficientLiquidity)
	}

	tok, err := e.tokens.Resolve(asset)
	if err != nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, err)
	}

	rec.ReserveBase = newBase
	rec.ReserveAsset = newAsset
	rec.TotalShares = newTotal
	if writeErr := view.writeMarket(asset, rec); writeErr != nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, writeErr)
	}
	view.setLPBalance(asset, caller, callerShares.Sub(shares))

	if err := e.payPair(tok, caller, baseOut, assetOut); err != nil {
		return decimal.Zero, decimal.Zero, opErr(op, asset, err)
	}

	if err := view.commit(ctx); err != nil {
		// The payout already ran; claw both legs back so the failed
		// removal moves no funds.
		if clawErr := e.base.Transfer(caller, e.custody, baseOut); clawErr != nil {
			e.log.Error("clawback after failed commit failed",
				"market", asset, "caller", caller, "err", clawErr)
		}
		if clawErr := tok.Transfer(caller, e.custody, assetOut); clawErr != nil {
			e.log.Error("clawback after failed commit failed",
				"market", asset, "caller", caller, "err", clawErr)
		}
		return decimal.Zero, decimal.Zero, opErr(op, asset, err)
	}

	e.log.Info("liquidity removed", "asset", asset, "provider", caller,
		"burned", shares, "base_out", baseOut, "asset_out", assetOut)
	e.publishLiquidityChanged(LiquidityChangedEvent{
		Asset:        asset,
		Account:      caller,
		Added:        false,
		SharesDelta:  shares,
		ReserveBase:  rec.ReserveBase,
		ReserveAsset: rec.ReserveAsset,
		TotalShares:  rec.TotalShares,
	})
	return baseOut, assetOut, nil
}

// TransferLiquidity moves LP shares from the caller to another account.
func (e *Engine) TransferLiquidity(ctx context.Context, caller, asset, to string, shares decimal.Decimal) error {
	const op = "transfer_liquidity"

	if err := checkPositive(shares); err != nil {
		return opErr(op, asset, err)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	fromShares, err := view.lpBalance(ctx, asset, caller)
	if err != nil {
		return opErr(op, asset, err)
	}
	if fromShares.LessThan(shares) {
		return opErr(op, asset, ErrInsufficientBalance)
	}
	toShares, err := view.lpBalance(ctx, asset, to)
	if err != nil {
		return opErr(op, asset, err)
	}

	view.setLPBalance(asset, caller, fromShares.Sub(shares))
	view.setLPBalance(asset, to, toShares.Add(shares))
	if err := view.commit(ctx); err != nil {
		return opErr(op, asset, err)
	}

	e.log.Debug("liquidity transferred", "asset", asset,
		"from", caller, "to", to, "shares", shares)
	return nil
}

// ApproveLiquidity raises the spender's LP allowance from the caller and
// returns the new allowance.
func (e *Engine) ApproveLiquidity(ctx context.Context, caller, asset, spender string, shares decimal.Decimal) (decimal.Decimal, error) {
	const op = "approve_liquidity"

	if err := checkPositive(shares); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	current, err := view.lpAllowance(ctx, asset, caller, spender)
	if err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	next := current.Add(shares)
	view.setLPAllowance(asset, caller, spender, next)
	if err := view.commit(ctx); err != nil {
		return decimal.Zero, opErr(op, asset, err)
	}

	e.log.Debug("liquidity approved", "asset", asset,
		"owner", caller, "spender", spender, "allowance", next)
	return next, nil
}

// TransferLiquidityFrom moves LP shares from an owner to a recipient on the
// caller's behalf, consuming the caller's allowance. Allowance and owner
// balance are both checked before either is decremented.
func (e *Engine) TransferLiquidityFrom(ctx context.Context, caller, asset, owner, to string, shares decimal.Decimal) error {
	const op = "transfer_liquidity_from"

	if err := checkPositive(shares); err != nil {
		return opErr(op, asset, err)
	}

	unlock := e.lockMarket(asset)
	defer unlock()

	view := newStateView(e.db)
	allowance, err := view.lpAllowance(ctx, asset, owner, caller)
	if err != nil {
		return opErr(op, asset, err)
	}
	if allowance.LessThan(shares) {
		return opErr(op, asset, ErrInsufficientAllowance)
	}
	ownerShares, err := view.lpBalance(ctx, asset, owner)
	if err != nil {
		return opErr(op, asset, err)
	}
	if ownerShares.LessThan(shares) {
		return opErr(op, asset, ErrInsufficientBalance)
	}
	toShares, err := view.lpBalance(ctx, asset, to)
	if err != nil {
		return opErr(op, asset, err)
	}

	view.setLPAllowance(asset, owner, caller, allowance.Sub(shares))
	view.setLPBalance(asset, owner, ownerShares.Sub(shares))
	view.setLPBalance(asset, to, toShares.Add(shares))
	if err := view.commit(ctx); err != nil {
		return opErr(op, asset, err)
	}

	e.log.Debug("liquidity transferred by delegate", "asset", asset,
		"owner", owner, "spender", caller, "to", to, "shares", shares)
	return nil
}

// LiquidityBalanceOf returns an account's LP share balance.
func (e *Engine) LiquidityBalanceOf(ctx context.Context, asset, account string) (decimal.Decimal, error) {
	return newStateView(e.db).lpBalance(ctx, asset, account)
}

// LiquidityAllowance returns the spender's remaining LP allowance from the
// owner.
func (e *Engine) LiquidityAllowance(ctx context.Context, asset, owner, spender string) (decimal.Decimal, error) {
	return newStateView(e.db).lpAllowance(ctx, asset, owner, spender)
}
