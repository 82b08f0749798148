package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// State key layout, one row per market attribute group:
//
//	market/<asset>                  MarketRecord (JSON)
//	lp/<asset>/<account>            LP share balance (decimal string)
//	lpallow/<asset>/<owner>/<spender>  LP share allowance (decimal string)
//	markets/count                   number of markets created
const (
	keyPrefixMarket    = "market/"
	keyPrefixLP        = "lp/"
	keyPrefixAllowance = "lpallow/"
	keyMarketCount     = "markets/count"
)

func marketKey(asset string) string {
	return keyPrefixMarket + asset
}

func lpKey(asset, account string) string {
	return keyPrefixLP + asset + "/" + account
}

func allowanceKey(asset, owner, spender string) string {
	return keyPrefixAllowance + asset + "/" + owner + "/" + spender
}

// MarketRecord is the persisted state of one market. Decimals marshal as
// strings, so round-tripping through the store is exact.
type MarketRecord struct {
	ReserveBase  decimal.Decimal `json:"reserve_base"`
	ReserveAsset decimal.Decimal `json:"reserve_asset"`
	SpotPrice    decimal.Decimal `json:"spot_price"`
	TotalShares  decimal.Decimal `json:"total_shares"`

	// Withheld swap fees held in custody outside the reserves.
	FeeBase  decimal.Decimal `json:"fee_base"`
	FeeAsset decimal.Decimal `json:"fee_asset"`
}

// readMarket returns the market record for an asset, or (nil, nil) when no
// market exists.
func (v *stateView) readMarket(ctx context.Context, asset string) (*MarketRecord, error) {
	data, ok, err := v.get(ctx, marketKey(asset))
	if err != nil || !ok {
		return nil, err
	}

	var rec MarketRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt market record for %s: %w", asset, err)
	}
	return &rec, nil
}

func (v *stateView) writeMarket(asset string, rec *MarketRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	v.put(marketKey(asset), data)
	return nil
}

func (v *stateView) readDecimal(ctx context.Context, key string) (decimal.Decimal, error) {
	data, ok, err := v.get(ctx, key)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt decimal at %s: %w", key, err)
	}
	return d, nil
}

func (v *stateView) writeDecimal(key string, d decimal.Decimal) {
	v.put(key, []byte(d.String()))
}

// lpBalance returns the LP share balance, zero for unknown accounts.
func (v *stateView) lpBalance(ctx context.Context, asset, account string) (decimal.Decimal, error) {
	return v.readDecimal(ctx, lpKey(asset, account))
}

func (v *stateView) setLPBalance(asset, account string, d decimal.Decimal) {
	v.writeDecimal(lpKey(asset, account), d)
}

// lpAllowance returns the delegated-spend amount, zero when never approved.
func (v *stateView) lpAllowance(ctx context.Context, asset, owner, spender string) (decimal.Decimal, error) {
	return v.readDecimal(ctx, allowanceKey(asset, owner, spender))
}

func (v *stateView) setLPAllowance(asset, owner, spender string, d decimal.Decimal) {
	v.writeDecimal(allowanceKey(asset, owner, spender), d)
}

func (v *stateView) marketCount(ctx context.Context) (int64, error) {
	data, ok, err := v.get(ctx, keyMarketCount)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt market count: %w", err)
	}
	return n, nil
}

func (v *stateView) setMarketCount(n int64) {
	v.put(keyMarketCount, []byte(strconv.FormatInt(n, 10)))
}
