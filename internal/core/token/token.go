// Package token defines the fungible-token capability set the AMM engine
// requires of any traded asset, the conformance gate that checks an
// externally supplied token against it, and a reference ledger
// implementation used as the base currency.
package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrConformance indicates a token is missing part of the required
	// capability set. Markets are never created over such tokens.
	ErrConformance = errors.New("token does not meet the required interface")

	// ErrNotRegistered indicates no token module is registered for an asset id
	ErrNotRegistered = errors.New("token not registered")

	// ErrInsufficientBalance indicates the sender holds less than the transfer amount
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance indicates the spender was approved for less
	// than the transfer amount
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrNonPositiveAmount indicates a zero or negative amount
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Transferer moves funds out of the acting account.
type Transferer interface {
	Transfer(from, to string, amount decimal.Decimal) error
}

// TransferFromer moves previously approved funds out of an owner account.
// The spender must hold an allowance from the owner covering the amount.
type TransferFromer interface {
	TransferFrom(spender, owner, to string, amount decimal.Decimal) error
}

// Approver grants a spender the right to move funds out of the acting
// account, returning the new allowance.
type Approver interface {
	Approve(owner, spender string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Allowancer reports the delegated-spend amount for an (owner, spender) pair.
type Allowancer interface {
	Allowance(owner, spender string) (decimal.Decimal, error)
}

// Token is the full capability set the engine trusts with market funds.
// balance_of is deliberately not part of the gate; the engine never needs
// to read external balances, only to move funds.
type Token interface {
	Transferer
	TransferFromer
	Approver
	Allowancer
}

// Conform checks that v exposes every required capability and returns it as
// a Token. The error names each missing capability so a rejected market
// creation is diagnosable.
func Conform(v any) (Token, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil token module", ErrConformance)
	}
	if tok, ok := v.(Token); ok {
		return tok, nil
	}

	var missing []string
	if _, ok := v.(Transferer); !ok {
		missing = append(missing, "transfer")
	}
	if _, ok := v.(TransferFromer); !ok {
		missing = append(missing, "transfer_from")
	}
	if _, ok := v.(Approver); !ok {
		missing = append(missing, "approve")
	}
	if _, ok := v.(Allowancer); !ok {
		missing = append(missing, "allowance")
	}
	return nil, fmt.Errorf("%w: missing %s", ErrConformance, strings.Join(missing, ", "))
}
