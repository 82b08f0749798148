package cli

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goAMMd/internal/config"
)

func TestSeedGenesis(t *testing.T) {
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.Genesis = config.GenesisConfig{
		Assets: []string{"tok1"},
		Balances: []config.GenesisBalance{
			{Account: "alice", Token: "tok1", Amount: "1000"},
			{Account: "alice", Amount: "500"},
		},
	}

	base, registry, err := seedGenesis(cfg, nil)
	require.NoError(t, err)

	assert.True(t, base.BalanceOf("alice").Equal(decimal.NewFromInt(500)))
	assert.True(t, registry.Registered("tok1"))

	tok, err := registry.Resolve("tok1")
	require.NoError(t, err)

	// The mint pre-approves custody for the whole amount.
	allowance, err := tok.Allowance("alice", cfg.Dex.CustodyAccount)
	require.NoError(t, err)
	assert.True(t, allowance.Equal(decimal.NewFromInt(1000)))

	allowance, err = base.Allowance("alice", cfg.Dex.CustodyAccount)
	require.NoError(t, err)
	assert.True(t, allowance.Equal(decimal.NewFromInt(500)))
}

func TestSeedGenesisBadAmount(t *testing.T) {
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.Genesis.Balances = []config.GenesisBalance{
		{Account: "alice", Amount: "not-a-number"},
	}

	_, _, err = seedGenesis(cfg, nil)
	require.Error(t, err)
}
