package dex

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition indicates a malformed call: zero or negative amount,
	// empty account, or similar
	ErrPrecondition = errors.New("precondition failed")

	// ErrMarketExists indicates a creation attempt for an asset that
	// already has a market
	ErrMarketExists = errors.New("market already exists")

	// ErrMarketNotFound indicates an operation against a missing market
	ErrMarketNotFound = errors.New("market does not exist")

	// ErrInsufficientBalance indicates an LP share balance short of the
	// requested amount
	ErrInsufficientBalance = errors.New("insufficient LP share balance")

	// ErrInsufficientAllowance indicates a delegated LP transfer beyond
	// the approved amount
	ErrInsufficientAllowance = errors.New("insufficient LP share allowance")

	// ErrInsufficientLiquidity indicates a removal that would drain the
	// pool below its floor
	ErrInsufficientLiquidity = errors.New("not enough remaining liquidity")

	// ErrSwapInvariant indicates a swap whose computed output is not
	// strictly positive
	ErrSwapInvariant = errors.New("swap output not positive")
)

// OpError wraps an engine failure with the operation and market that
// produced it.
type OpError struct {
	Op     string
	Market string
	Cause  error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Market == "" {
		return fmt.Sprintf("dex %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("dex %s on market %s: %v", e.Op, e.Market, e.Cause)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *OpError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

func opErr(op, market string, cause error) error {
	if cause == nil {
		return nil
	}
	return &OpError{Op: op, Market: market, Cause: cause}
}
