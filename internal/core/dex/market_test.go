package dex

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goAMMd/internal/core/token"
)

func TestCreateMarket(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds reserves, price and bootstrap shares", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		f.createMarket(t, "1000", "1000")

		rec, err := f.eng.Market(ctx, testAsset)
		require.NoError(t, err)
		requireDecEq(t, dec("1000"), rec.ReserveBase)
		requireDecEq(t, dec("1000"), rec.ReserveAsset)
		requireDecEq(t, dec("1"), rec.SpotPrice)
		requireDecEq(t, dec("100"), rec.TotalShares)

		shares, err := f.eng.LiquidityBalanceOf(ctx, testAsset, alice)
		require.NoError(t, err)
		requireDecEq(t, dec("100"), shares)

		count, err := f.eng.MarketCount(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)

		// Deposits landed in custody.
		requireDecEq(t, dec("1000"), f.base.BalanceOf(testCustody))
		requireDecEq(t, dec("1000"), f.asset.BalanceOf(testCustody))
		requireDecEq(t, dec("999000"), f.base.BalanceOf(alice))
	})

	t.Run("uneven seed sets fractional price", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		f.createMarket(t, "100", "1000")

		price, err := f.eng.SpotPrice(ctx, testAsset)
		require.NoError(t, err)
		requireDecEq(t, dec("0.1"), price)
	})

	t.Run("duplicate market rejected", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		f.createMarket(t, "100", "1000")

		err := f.eng.CreateMarket(ctx, bob, testAsset, dec("1"), dec("1"))
		require.ErrorIs(t, err, ErrMarketExists)

		// Bob's funds untouched.
		requireDecEq(t, dec("1000000"), f.base.BalanceOf(bob))
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		for _, amounts := range [][2]string{
			{"0", "10"}, {"10", "0"}, {"-1", "10"}, {"10", "-1"},
		} {
			err := f.eng.CreateMarket(ctx, alice, testAsset,
				dec(amounts[0]), dec(amounts[1]))
			require.ErrorIs(t, err, ErrPrecondition)
		}

		exists, err := f.eng.MarketExists(ctx, testAsset)
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("non-conforming token gates creation before any transfer", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		f.tokens.Register("partial", transferOnly{})

		err := f.eng.CreateMarket(ctx, alice, "partial", dec("10"), dec("10"))
		require.ErrorIs(t, err, token.ErrConformance)
		requireDecEq(t, dec("1000000"), f.base.BalanceOf(alice))
	})

	t.Run("unregistered asset rejected", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		err := f.eng.CreateMarket(ctx, alice, "ghost", dec("10"), dec("10"))
		require.ErrorIs(t, err, token.ErrNotRegistered)
	})

	t.Run("insufficient funds leave no partial state", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		err := f.eng.CreateMarket(ctx, alice, testAsset,
			dec("2000000"), dec("10"))
		require.Error(t, err)

		exists, err := f.eng.MarketExists(ctx, testAsset)
		require.NoError(t, err)
		require.False(t, exists)
		count, err := f.eng.MarketCount(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 0, count)
	})

	t.Run("failed asset leg refunds the base leg", func(t *testing.T) {
		f := newFixture(t, FeePolicy{})
		// Enough base, not enough asset allowance headroom.
		f.fund(t, "dave", dec("500"))
		err := f.eng.CreateMarket(ctx, "dave", testAsset,
			dec("100"), dec("600"))
		require.Error(t, err)
		requireDecEq(t, dec("500"), f.base.BalanceOf("dave"))
		requireDecEq(t, dec("500"), f.asset.BalanceOf("dave"))
	})
}

func TestMarketQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, FeePolicy{})

	t.Run("absent market", func(t *testing.T) {
		_, err := f.eng.SpotPrice(ctx, testAsset)
		require.ErrorIs(t, err, ErrMarketNotFound)
		_, _, err = f.eng.Reserves(ctx, testAsset)
		require.ErrorIs(t, err, ErrMarketNotFound)

		exists, err := f.eng.MarketExists(ctx, testAsset)
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("present market", func(t *testing.T) {
		f.createMarket(t, "100", "1000")

		base, asset, err := f.eng.Reserves(ctx, testAsset)
		require.NoError(t, err)
		requireDecEq(t, dec("100"), base)
		requireDecEq(t, dec("1000"), asset)

		exists, err := f.eng.MarketExists(ctx, testAsset)
		require.NoError(t, err)
		require.True(t, exists)
	})
}

// transferOnly implements a single token capability and must fail the gate.
type transferOnly struct{}

func (transferOnly) Transfer(from, to string, amount decimal.Decimal) error { return nil }
