package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/LeJamon/goAMMd/internal/core/dex"
	"github.com/LeJamon/goAMMd/internal/core/token"
)

// Handler dispatches JSON-RPC methods to the market maker engine. Amounts
// travel as decimal strings in both directions.
type Handler struct {
	engine  *dex.Engine
	methods map[string]methodFunc
}

type methodFunc func(ctx context.Context, params json.RawMessage) (any, *RPCError)

// NewHandler initializes a Handler with every engine method registered.
func NewHandler(engine *dex.Engine) *Handler {
	h := &Handler{engine: engine}
	h.methods = map[string]methodFunc{
		"create_market":           h.handleCreateMarket,
		"add_liquidity":           h.handleAddLiquidity,
		"remove_liquidity":        h.handleRemoveLiquidity,
		"transfer_liquidity":      h.handleTransferLiquidity,
		"approve_liquidity":       h.handleApproveLiquidity,
		"transfer_liquidity_from": h.handleTransferLiquidityFrom,
		"liquidity_balance_of":    h.handleLiquidityBalanceOf,
		"buy":                     h.handleBuy,
		"sell":                    h.handleSell,
		"amm_info":                h.handleAMMInfo,
		"quote":                   h.handleQuote,
	}
	return h
}

// Handle dispatches one request and never panics back to the transport.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
	fn, ok := h.methods[method]
	if !ok {
		return nil, &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("method %s not found", method),
		}
	}
	return fn(ctx, params)
}

func decodeParams(params json.RawMessage, dst any) *RPCError {
	if len(params) == 0 || string(params) == "null" {
		return &RPCError{Code: CodeInvalidParams, Message: "missing params"}
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func parseAmount(field, s string) (decimal.Decimal, *RPCError) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &RPCError{
			Code:    CodeInvalidParams,
			Message: fmt.Sprintf("bad %s: %v", field, err),
		}
	}
	return d, nil
}

// engineError maps engine failures into the server-defined error range.
// Anything outside the known taxonomy reports as internal.
func engineError(err error) *RPCError {
	for _, known := range []error{
		dex.ErrPrecondition,
		dex.ErrMarketExists,
		dex.ErrMarketNotFound,
		dex.ErrInsufficientBalance,
		dex.ErrInsufficientAllowance,
		dex.ErrInsufficientLiquidity,
		dex.ErrSwapInvariant,
		token.ErrConformance,
		token.ErrNotRegistered,
		token.ErrInsufficientBalance,
		token.ErrInsufficientAllowance,
	} {
		if errors.Is(err, known) {
			return &RPCError{Code: CodeEngineError, Message: err.Error()}
		}
	}
	return &RPCError{Code: CodeInternalError, Message: err.Error()}
}

type createMarketParams struct {
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	BaseAmount  string `json:"base_amount"`
	AssetAmount string `json:"asset_amount"`
}

func (h *Handler) handleCreateMarket(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p createMarketParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	baseAmount, rpcErr := parseAmount("base_amount", p.BaseAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	assetAmount, rpcErr := parseAmount("asset_amount", p.AssetAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := h.engine.CreateMarket(ctx, p.Caller, p.Asset, baseAmount, assetAmount); err != nil {
		return nil, engineError(err)
	}
	return h.marketInfo(ctx, p.Asset)
}

type addLiquidityParams struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset"`
	BaseAmount string `json:"base_amount"`
}

func (h *Handler) handleAddLiquidity(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p addLiquidityParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	baseAmount, rpcErr := parseAmount("base_amount", p.BaseAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	minted, err := h.engine.AddLiquidity(ctx, p.Caller, p.Asset, baseAmount)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]any{"minted_shares": minted}, nil
}

type removeLiquidityParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Shares string `json:"shares"`
}

func (h *Handler) handleRemoveLiquidity(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p removeLiquidityParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	shares, rpcErr := parseAmount("shares", p.Shares)
	if rpcErr != nil {
		return nil, rpcErr
	}

	baseOut, assetOut, err := h.engine.RemoveLiquidity(ctx, p.Caller, p.Asset, shares)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]any{"base_out": baseOut, "asset_out": assetOut}, nil
}

type transferLiquidityParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Shares string `json:"shares"`
}

func (h *Handler) handleTransferLiquidity(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p transferLiquidityParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	shares, rpcErr := parseAmount("shares", p.Shares)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := h.engine.TransferLiquidity(ctx, p.Caller, p.Asset, p.To, shares); err != nil {
		return nil, engineError(err)
	}
	return map[string]any{"transferred": shares}, nil
}

type approveLiquidityParams struct {
	Caller  string `json:"caller"`
	Asset   string `json:"asset"`
	Spender string `json:"spender"`
	Shares  string `json:"shares"`
}

func (h *Handler) handleApproveLiquidity(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p approveLiquidityParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	shares, rpcErr := parseAmount("shares", p.Shares)
	if rpcErr != nil {
		return nil, rpcErr
	}

	allowance, err := h.engine.ApproveLiquidity(ctx, p.Caller, p.Asset, p.Spender, shares)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]any{"allowance": allowance}, nil
}

type transferLiquidityFromParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Owner  string `json:"owner"`
	To     string `json:"to"`
	Shares string `json:"shares"`
}

func (h *Handler) handleTransferLiquidityFrom(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p transferLiquidityFromParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	shares, rpcErr := parseAmount("shares", p.Shares)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := h.engine.TransferLiquidityFrom(ctx, p.Caller, p.Asset, p.Owner, p.To, shares); err != nil {
		return nil, engineError(err)
	}
	return map[string]any{"transferred": shares}, nil
}

type liquidityBalanceOfParams struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
}

func (h *Handler) handleLiquidityBalanceOf(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p liquidityBalanceOfParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	shares, err := h.engine.LiquidityBalanceOf(ctx, p.Asset, p.Account)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]any{
		"asset":   p.Asset,
		"account": p.Account,
		"shares":  shares,
	}, nil
}

type swapParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (h *Handler) handleBuy(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	return h.handleSwap(ctx, params, h.engine.Buy)
}

func (h *Handler) handleSell(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	return h.handleSwap(ctx, params, h.engine.Sell)
}

func (h *Handler) handleSwap(ctx context.Context, params json.RawMessage,
	exec func(context.Context, string, string, decimal.Decimal) (decimal.Decimal, error)) (any, *RPCError) {

	var p swapParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	out, err := exec(ctx, p.Caller, p.Asset, amount)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]any{"amount_out": out}, nil
}

type ammInfoParams struct {
	Asset string `json:"asset"`
}

func (h *Handler) handleAMMInfo(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p ammInfoParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return h.marketInfo(ctx, p.Asset)
}

type quoteParams struct {
	Asset   string `json:"asset"`
	BaseIn  string `json:"base_in,omitempty"`
	AssetIn string `json:"asset_in,omitempty"`
}

func (h *Handler) handleQuote(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p quoteParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	baseIn := decimal.Zero
	assetIn := decimal.Zero
	var rpcErr *RPCError
	if p.BaseIn != "" {
		if baseIn, rpcErr = parseAmount("base_in", p.BaseIn); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if p.AssetIn != "" {
		if assetIn, rpcErr = parseAmount("asset_in", p.AssetIn); rpcErr != nil {
			return nil, rpcErr
		}
	}

	q, err := h.engine.Quote(ctx, p.Asset, baseIn, assetIn)
	if err != nil {
		return nil, engineError(err)
	}
	return q, nil
}

func (h *Handler) marketInfo(ctx context.Context, asset string) (any, *RPCError) {
	rec, err := h.engine.Market(ctx, asset)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]any{
		"asset":         asset,
		"reserve_base":  rec.ReserveBase,
		"reserve_asset": rec.ReserveAsset,
		"spot_price":    rec.SpotPrice,
		"total_shares":  rec.TotalShares,
		"fee_base":      rec.FeeBase,
		"fee_asset":     rec.FeeAsset,
	}, nil
}
