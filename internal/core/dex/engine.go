// Package dex implements the constant-product market maker engine: market
// creation, proportional liquidity provisioning, delegated LP share
// transfer, and buy/sell swap execution against a base/asset reserve pair.
//
// Every public operation on a given market is a single atomic state
// transition: preconditions are validated against committed state, the new
// state is computed, external fund transfers run, and the new state commits
// as one store batch. A failed operation leaves no ledger write and no
// un-compensated transfer behind.
package dex

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/LeJamon/goAMMd/internal/core/token"
	"github.com/LeJamon/goAMMd/internal/storage/statedb"
)

// BootstrapShares is the fixed LP share mint to a market's creator.
var BootstrapShares = decimal.NewFromInt(100)

// MinTotalShares is the floor a removal may not cross: post-burn total
// supply must stay strictly above it, so a market can never be drained to a
// zero-reserve state.
var MinTotalShares = decimal.NewFromInt(1)

// Config assembles an Engine's collaborators.
type Config struct {
	// DB is the backing state store.
	DB statedb.DB

	// Tokens resolves traded-asset identifiers to conformed token modules.
	Tokens *token.Registry

	// Base is the base-currency token every market trades against.
	Base token.Token

	// Custody is the pool's own account: destination of every deposit and
	// source of every payout.
	Custody string

	// Fee is the swap fee policy. Zero value means fee-free.
	Fee FeePolicy

	// Events receives market event notifications. Optional.
	Events EventPublisher

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine is the AMM core. Operations on the same market are mutually
// exclusive; disjoint markets proceed in parallel.
type Engine struct {
	db      statedb.DB
	tokens  *token.Registry
	base    token.Token
	custody string
	fee     FeePolicy
	events  EventPublisher
	log     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// countMu serializes the markets/count read-modify-write, which the
	// per-market locks do not cover: creations of different assets run in
	// parallel but share the one counter key.
	countMu sync.Mutex
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.DB == nil {
		return nil, errors.New("dex: nil state store")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("dex: nil token registry")
	}
	if cfg.Base == nil {
		return nil, errors.New("dex: nil base token")
	}
	if cfg.Custody == "" {
		return nil, errors.New("dex: empty custody account")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:      cfg.DB,
		tokens:  cfg.Tokens,
		base:    cfg.Base,
		custody: cfg.Custody,
		fee:     cfg.Fee,
		events:  cfg.Events,
		log:     logger,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// lockMarket serializes operations per market key.
func (e *Engine) lockMarket(asset string) func() {
	e.mu.Lock()
	l, ok := e.locks[asset]
	if !ok {
		l = &sync.Mutex{}
		e.locks[asset] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// pullPair draws the base and asset legs of a two-sided deposit from the
// caller into custody. If the asset leg fails after the base leg cleared,
// the base leg is refunded so the failed operation moves no funds.
func (e *Engine) pullPair(tok token.Token, caller string, baseAmount, assetAmount decimal.Decimal) error {
	if err := e.base.TransferFrom(e.custody, caller, e.custody, baseAmount); err != nil {
		return err
	}
	if err := tok.TransferFrom(e.custody, caller, e.custody, assetAmount); err != nil {
		if refundErr := e.base.Transfer(e.custody, caller, baseAmount); refundErr != nil {
			e.log.Error("refund after failed deposit leg failed",
				"caller", caller, "amount", baseAmount, "err", refundErr)
		}
		return err
	}
	return nil
}

// payPair pays the base and asset legs of a withdrawal out of custody. If
// the asset leg fails after the base leg cleared, the base leg is clawed
// back.
func (e *Engine) payPair(tok token.Token, caller string, baseAmount, assetAmount decimal.Decimal) error {
	if err := e.base.Transfer(e.custody, caller, baseAmount); err != nil {
		return err
	}
	if err := tok.Transfer(e.custody, caller, assetAmount); err != nil {
		if clawErr := e.base.Transfer(caller, e.custody, baseAmount); clawErr != nil {
			e.log.Error("clawback after failed payout leg failed",
				"caller", caller, "amount", baseAmount, "err", clawErr)
		}
		return err
	}
	return nil
}

func checkPositive(amounts ...decimal.Decimal) error {
	for _, a := range amounts {
		if !a.IsPositive() {
			return ErrPrecondition
		}
	}
	return nil
}
