package dex

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goAMMd/internal/core/token"
	"github.com/LeJamon/goAMMd/internal/storage/statedb"
)

const (
	testAsset   = "tok1"
	testCustody = "amm_pool"
	alice       = "alice"
	bob         = "bob"
	carol       = "carol"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// requireDecEq compares by numeric value, not representation.
func requireDecEq(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s, got %s", want, got)
}

// requireDecNear tolerates rounding in the last digits of long divisions.
func requireDecNear(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.True(t, want.Sub(got).Abs().LessThan(dec("0.000000000001")),
		"want %s, got %s", want, got)
}

type fixture struct {
	eng    *Engine
	db     statedb.DB
	base   *token.Ledger
	asset  *token.Ledger
	tokens *token.Registry
}

func newFixture(t *testing.T, fee FeePolicy) *fixture {
	t.Helper()

	db := statedb.NewMemory()
	t.Cleanup(func() { _ = db.Close() })

	base := token.NewLedger()
	asset := token.NewLedger()
	reg := token.NewRegistry()
	reg.Register(testAsset, asset)

	eng, err := NewEngine(Config{
		DB:      db,
		Tokens:  reg,
		Base:    base,
		Custody: testCustody,
		Fee:     fee,
	})
	require.NoError(t, err)

	f := &fixture{eng: eng, db: db, base: base, asset: asset, tokens: reg}
	for _, account := range []string{alice, bob, carol} {
		f.fund(t, account, dec("1000000"))
	}
	return f
}

// fund mints both currencies to an account and grants the pool custody a
// matching spending allowance.
func (f *fixture) fund(t *testing.T, account string, amount decimal.Decimal) {
	t.Helper()
	require.NoError(t, f.base.Mint(account, amount))
	require.NoError(t, f.asset.Mint(account, amount))
	_, err := f.base.Approve(account, testCustody, amount)
	require.NoError(t, err)
	_, err = f.asset.Approve(account, testCustody, amount)
	require.NoError(t, err)
}

// createMarket seeds a market with the given reserves under alice.
func (f *fixture) createMarket(t *testing.T, baseAmount, assetAmount string) {
	t.Helper()
	require.NoError(t, f.eng.CreateMarket(context.Background(),
		alice, testAsset, dec(baseAmount), dec(assetAmount)))
}

func TestNewEngine(t *testing.T) {
	db := statedb.NewMemory()
	defer db.Close()
	reg := token.NewRegistry()
	base := token.NewLedger()

	t.Run("valid config", func(t *testing.T) {
		eng, err := NewEngine(Config{
			DB: db, Tokens: reg, Base: base, Custody: testCustody,
		})
		require.NoError(t, err)
		require.NotNil(t, eng)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		cases := []struct {
			name string
			cfg  Config
		}{
			{"no db", Config{Tokens: reg, Base: base, Custody: testCustody}},
			{"no registry", Config{DB: db, Base: base, Custody: testCustody}},
			{"no base token", Config{DB: db, Tokens: reg, Custody: testCustody}},
			{"no custody account", Config{DB: db, Tokens: reg, Base: base}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewEngine(tc.cfg)
				require.Error(t, err)
			})
		}
	})
}

// TestConcurrentMarketCreationCounts creates markets for distinct assets in
// parallel. The per-market locks let these interleave, so the shared market
// counter must still account for every creation.
func TestConcurrentMarketCreationCounts(t *testing.T) {
	db := statedb.NewMemory()
	t.Cleanup(func() { _ = db.Close() })

	base := token.NewLedger()
	reg := token.NewRegistry()
	funding := dec("100000")
	require.NoError(t, base.Mint(alice, funding))
	_, err := base.Approve(alice, testCustody, funding)
	require.NoError(t, err)

	assets := []string{"tokA", "tokB", "tokC", "tokD"}
	for _, asset := range assets {
		ledger := token.NewLedger()
		require.NoError(t, ledger.Mint(alice, funding))
		_, err := ledger.Approve(alice, testCustody, funding)
		require.NoError(t, err)
		reg.Register(asset, ledger)
	}

	eng, err := NewEngine(Config{
		DB: db, Tokens: reg, Base: base, Custody: testCustody,
	})
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan error, len(assets))
	for _, asset := range assets {
		go func(asset string) {
			done <- eng.CreateMarket(ctx, alice, asset, dec("100"), dec("1000"))
		}(asset)
	}
	for range assets {
		require.NoError(t, <-done)
	}

	count, err := eng.MarketCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, len(assets), count)

	for _, asset := range assets {
		exists, err := eng.MarketExists(ctx, asset)
		require.NoError(t, err)
		require.True(t, exists, "market %s missing", asset)
	}
}

func TestMarketLockIsolation(t *testing.T) {
	f := newFixture(t, FeePolicy{})
	f.createMarket(t, "100", "1000")

	// Concurrent adds on the same market must serialize; the final total
	// must reflect both mints with no lost update.
	ctx := context.Background()
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.eng.AddLiquidity(ctx, bob, testAsset, dec("10"))
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	rec, err := f.eng.Market(ctx, testAsset)
	require.NoError(t, err)
	requireDecEq(t, dec("120"), rec.TotalShares)
	requireDecEq(t, dec("120"), rec.ReserveBase)
}

// commitFailDB passes reads through but rejects batch commits on demand,
// forcing every operation into its compensation path.
type commitFailDB struct {
	statedb.DB
	fail bool
}

var errBatchRejected = errors.New("batch rejected")

func (d *commitFailDB) Batch(ctx context.Context, ops []statedb.BatchOperation) error {
	if d.fail {
		return errBatchRejected
	}
	return d.DB.Batch(ctx, ops)
}

// TestCommitFailureRestoresFunds drives each fund-moving operation into a
// failed commit and checks that the compensating transfers leave every
// balance and the market record exactly as they were.
func TestCommitFailureRestoresFunds(t *testing.T) {
	ctx := context.Background()

	db := &commitFailDB{DB: statedb.NewMemory()}
	t.Cleanup(func() { _ = db.Close() })

	base := token.NewLedger()
	asset := token.NewLedger()
	reg := token.NewRegistry()
	reg.Register(testAsset, asset)

	eng, err := NewEngine(Config{
		DB: db, Tokens: reg, Base: base, Custody: testCustody,
	})
	require.NoError(t, err)

	funding := dec("1000000")
	for _, account := range []string{alice, bob} {
		require.NoError(t, base.Mint(account, funding))
		require.NoError(t, asset.Mint(account, funding))
		_, err := base.Approve(account, testCustody, funding)
		require.NoError(t, err)
		_, err = asset.Approve(account, testCustody, funding)
		require.NoError(t, err)
	}
	require.NoError(t, eng.CreateMarket(ctx, alice, testAsset, dec("100"), dec("1000")))

	db.fail = true

	snapshot := func(t *testing.T) (baseBal, assetBal decimal.Decimal, rec MarketRecord) {
		t.Helper()
		rec, err := eng.Market(ctx, testAsset)
		require.NoError(t, err)
		return base.BalanceOf(bob), asset.BalanceOf(bob), rec
	}
	verify := func(t *testing.T, baseBal, assetBal decimal.Decimal, rec MarketRecord) {
		t.Helper()
		gotBase, gotAsset, gotRec := snapshot(t)
		requireDecEq(t, baseBal, gotBase)
		requireDecEq(t, assetBal, gotAsset)
		requireDecEq(t, rec.ReserveBase, gotRec.ReserveBase)
		requireDecEq(t, rec.ReserveAsset, gotRec.ReserveAsset)
		requireDecEq(t, rec.TotalShares, gotRec.TotalShares)
	}

	t.Run("buy", func(t *testing.T) {
		baseBal, assetBal, rec := snapshot(t)
		_, err := eng.Buy(ctx, bob, testAsset, dec("10"))
		require.ErrorIs(t, err, errBatchRejected)
		verify(t, baseBal, assetBal, rec)
	})

	t.Run("sell", func(t *testing.T) {
		baseBal, assetBal, rec := snapshot(t)
		_, err := eng.Sell(ctx, bob, testAsset, dec("10"))
		require.ErrorIs(t, err, errBatchRejected)
		verify(t, baseBal, assetBal, rec)
	})

	t.Run("add liquidity", func(t *testing.T) {
		baseBal, assetBal, rec := snapshot(t)
		_, err := eng.AddLiquidity(ctx, bob, testAsset, dec("50"))
		require.ErrorIs(t, err, errBatchRejected)
		verify(t, baseBal, assetBal, rec)
	})

	t.Run("remove liquidity", func(t *testing.T) {
		aliceBase := base.BalanceOf(alice)
		aliceAsset := asset.BalanceOf(alice)
		rec, err := eng.Market(ctx, testAsset)
		require.NoError(t, err)

		_, _, err = eng.RemoveLiquidity(ctx, alice, testAsset, dec("25"))
		require.ErrorIs(t, err, errBatchRejected)

		requireDecEq(t, aliceBase, base.BalanceOf(alice))
		requireDecEq(t, aliceAsset, asset.BalanceOf(alice))
		after, err := eng.Market(ctx, testAsset)
		require.NoError(t, err)
		requireDecEq(t, rec.ReserveBase, after.ReserveBase)
		requireDecEq(t, rec.TotalShares, after.TotalShares)
	})

	t.Run("create market", func(t *testing.T) {
		ledger := token.NewLedger()
		require.NoError(t, ledger.Mint(bob, funding))
		_, err := ledger.Approve(bob, testCustody, funding)
		require.NoError(t, err)
		reg.Register("tok2", ledger)

		baseBefore := base.BalanceOf(bob)
		err = eng.CreateMarket(ctx, bob, "tok2", dec("10"), dec("100"))
		require.ErrorIs(t, err, errBatchRejected)

		requireDecEq(t, baseBefore, base.BalanceOf(bob))
		requireDecEq(t, funding, ledger.BalanceOf(bob))
		exists, err := eng.MarketExists(ctx, "tok2")
		require.NoError(t, err)
		require.False(t, exists)
	})
}
