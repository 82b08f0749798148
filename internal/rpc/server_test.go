package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goAMMd/internal/config"
	"github.com/LeJamon/goAMMd/internal/core/dex"
	"github.com/LeJamon/goAMMd/internal/core/token"
	"github.com/LeJamon/goAMMd/internal/storage/statedb"
)

const (
	testAsset   = "tok1"
	testCustody = "amm_pool"
)

type testEnv struct {
	srv   *httptest.Server
	hub   *Hub
	base  *token.Ledger
	asset *token.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := statedb.NewMemory()
	t.Cleanup(func() { _ = db.Close() })

	base := token.NewLedger()
	asset := token.NewLedger()
	reg := token.NewRegistry()
	reg.Register(testAsset, asset)

	hub := NewHub(nil)
	eng, err := dex.NewEngine(dex.Config{
		DB:      db,
		Tokens:  reg,
		Base:    base,
		Custody: testCustody,
		Events:  NewPublisher(hub, nil),
	})
	require.NoError(t, err)

	for _, account := range []string{"alice", "bob"} {
		amount := decimal.NewFromInt(1_000_000)
		require.NoError(t, base.Mint(account, amount))
		require.NoError(t, asset.Mint(account, amount))
		_, err = base.Approve(account, testCustody, amount)
		require.NoError(t, err)
		_, err = asset.Approve(account, testCustody, amount)
		require.NoError(t, err)
	}

	server := NewServer(config.ServerConfig{}, NewHandler(eng), hub, nil)
	ts := httptest.NewServer(server.http.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Close)

	return &testEnv{srv: ts, hub: hub, base: base, asset: asset}
}

func (e *testEnv) call(t *testing.T, method string, params any) Response {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	require.NoError(t, err)

	resp, err := http.Post(e.srv.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) mustResult(t *testing.T, method string, params any) map[string]any {
	t.Helper()
	resp := e.call(t, method, params)
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok, "result is not an object: %T", resp.Result)
	return result
}

func (e *testEnv) createMarket(t *testing.T) {
	t.Helper()
	e.mustResult(t, "create_market", map[string]any{
		"caller":       "alice",
		"asset":        testAsset,
		"base_amount":  "100",
		"asset_amount": "1000",
	})
}

func TestRPCCreateMarketAndInfo(t *testing.T) {
	env := newTestEnv(t)

	result := env.mustResult(t, "create_market", map[string]any{
		"caller":       "alice",
		"asset":        testAsset,
		"base_amount":  "100",
		"asset_amount": "1000",
	})
	assert.Equal(t, "100", result["reserve_base"])
	assert.Equal(t, "1000", result["reserve_asset"])
	assert.Equal(t, "0.1", result["spot_price"])
	assert.Equal(t, "100", result["total_shares"])

	info := env.mustResult(t, "amm_info", map[string]any{"asset": testAsset})
	assert.Equal(t, "100", info["reserve_base"])
	assert.Equal(t, testAsset, info["asset"])
}

func TestRPCLiquidityLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.createMarket(t)

	added := env.mustResult(t, "add_liquidity", map[string]any{
		"caller":      "bob",
		"asset":       testAsset,
		"base_amount": "50",
	})
	assert.Equal(t, "50", added["minted_shares"])

	balance := env.mustResult(t, "liquidity_balance_of", map[string]any{
		"asset":   testAsset,
		"account": "bob",
	})
	assert.Equal(t, "50", balance["shares"])

	// 30 of 150 total shares is an exact fifth of the pool.
	removed := env.mustResult(t, "remove_liquidity", map[string]any{
		"caller": "bob",
		"asset":  testAsset,
		"shares": "30",
	})
	assert.Equal(t, "30", removed["base_out"])
	assert.Equal(t, "300", removed["asset_out"])
}

func TestRPCDelegatedTransfer(t *testing.T) {
	env := newTestEnv(t)
	env.createMarket(t)

	approved := env.mustResult(t, "approve_liquidity", map[string]any{
		"caller":  "alice",
		"asset":   testAsset,
		"spender": "bob",
		"shares":  "30",
	})
	assert.Equal(t, "30", approved["allowance"])

	env.mustResult(t, "transfer_liquidity_from", map[string]any{
		"caller": "bob",
		"asset":  testAsset,
		"owner":  "alice",
		"to":     "bob",
		"shares": "30",
	})

	balance := env.mustResult(t, "liquidity_balance_of", map[string]any{
		"asset":   testAsset,
		"account": "bob",
	})
	assert.Equal(t, "30", balance["shares"])

	direct := env.mustResult(t, "transfer_liquidity", map[string]any{
		"caller": "bob",
		"asset":  testAsset,
		"to":     "alice",
		"shares": "5",
	})
	assert.Equal(t, "5", direct["transferred"])
}

func TestRPCSwapsAndQuote(t *testing.T) {
	env := newTestEnv(t)
	env.createMarket(t)

	quote := env.mustResult(t, "quote", map[string]any{
		"asset":   testAsset,
		"base_in": "10",
	})
	require.Contains(t, quote, "amount_out")
	require.Contains(t, quote, "slippage")

	buy := env.mustResult(t, "buy", map[string]any{
		"caller": "bob",
		"asset":  testAsset,
		"amount": "10",
	})
	// Fee-free engine: the quote matches execution exactly.
	assert.Equal(t, quote["amount_out"], buy["amount_out"])

	sell := env.mustResult(t, "sell", map[string]any{
		"caller": "bob",
		"asset":  testAsset,
		"amount": buy["amount_out"],
	})
	out, err := decimal.NewFromString(sell["amount_out"].(string))
	require.NoError(t, err)
	assert.True(t, out.Sub(decimal.NewFromInt(10)).Abs().
		LessThan(decimal.RequireFromString("0.000000000001")))
}

func TestRPCErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown method", func(t *testing.T) {
		resp := env.call(t, "mint_money", map[string]any{})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		resp := env.call(t, "amm_info", nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		resp := env.call(t, "amm_info", map[string]any{
			"asset": testAsset, "bogus": true,
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("bad amount", func(t *testing.T) {
		resp := env.call(t, "buy", map[string]any{
			"caller": "bob", "asset": testAsset, "amount": "ten",
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("engine error", func(t *testing.T) {
		resp := env.call(t, "buy", map[string]any{
			"caller": "bob", "asset": "ghost", "amount": "10",
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeEngineError, resp.Error.Code)
	})

	t.Run("parse error", func(t *testing.T) {
		resp, err := http.Post(env.srv.URL, "application/json",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()

		var out Response
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.NotNil(t, out.Error)
		assert.Equal(t, CodeParseError, out.Error.Code)
	})

	t.Run("get not allowed", func(t *testing.T) {
		resp, err := http.Get(env.srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestRPCHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketEventStream(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the hub a beat to register the connection.
	require.Eventually(t, func() bool {
		return env.hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	env.createMarket(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type  string `json:"type"`
		Event struct {
			Asset       string `json:"asset"`
			Creator     string `json:"creator"`
			ReserveBase string `json:"reserve_base"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal(frame, &event))
	assert.Equal(t, "market_created", event.Type)
	assert.Equal(t, testAsset, event.Event.Asset)
	assert.Equal(t, "alice", event.Event.Creator)
	assert.Equal(t, "100", event.Event.ReserveBase)

	env.mustResult(t, "buy", map[string]any{
		"caller": "bob", "asset": testAsset, "amount": "10",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err = conn.ReadMessage()
	require.NoError(t, err)
	var swap struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(frame, &swap))
	assert.Equal(t, "swap", swap.Type)
}
