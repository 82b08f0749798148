package token

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger is the reference fungible token: per-account balances plus a
// two-phase approve/transfer_from allowance ledger. Every mutation is
// atomic under the ledger lock; a failed call leaves no partial write.
type Ledger struct {
	mu         sync.Mutex
	balances   map[string]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
}

type allowanceKey struct {
	owner, spender string
}

// NewLedger creates an empty token ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[allowanceKey]decimal.Decimal),
	}
}

// Mint credits newly issued funds to an account. Used by genesis seeding
// and tests; not part of the engine-facing capability set.
func (l *Ledger) Mint(account string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = l.balances[account].Add(amount)
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s",
			ErrInsufficientBalance, from, l.balances[from], amount)
	}
	l.balances[from] = l.balances[from].Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}

// TransferFrom moves previously approved funds out of the owner account.
// Allowance and balance are checked and decremented under one lock.
func (l *Ledger) TransferFrom(spender, owner, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner: owner, spender: spender}
	if l.allowances[key].LessThan(amount) {
		return fmt.Errorf("%w: %s approved %s for %s, tried to spend %s",
			ErrInsufficientAllowance, owner, l.allowances[key], spender, amount)
	}
	if l.balances[owner].LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s",
			ErrInsufficientBalance, owner, l.balances[owner], amount)
	}

	l.allowances[key] = l.allowances[key].Sub(amount)
	l.balances[owner] = l.balances[owner].Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}

// Approve increments the spender's allowance and returns the new total.
func (l *Ledger) Approve(owner, spender string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner: owner, spender: spender}
	l.allowances[key] = l.allowances[key].Add(amount)
	return l.allowances[key], nil
}

// Allowance returns the delegated-spend amount for an (owner, spender) pair.
func (l *Ledger) Allowance(owner, spender string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{owner: owner, spender: spender}], nil
}

// BalanceOf returns the balance of an account.
func (l *Ledger) BalanceOf(account string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}
