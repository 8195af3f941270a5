package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance liquid balance is lower than what the operation spends.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientStakedBalance staked principal is lower than the requested unstake.
	ErrInsufficientStakedBalance = errors.New("insufficient staked balance")
	// ErrInvalidAmount amount is not strictly positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInvalidPrice price is not strictly positive.
	ErrInvalidPrice = errors.New("price must be greater than zero")
	// ErrSameAsset base and quote of a trade are the same asset.
	ErrSameAsset = errors.New("base and quote assets must differ")
	// ErrEmptyAsset asset symbol is empty.
	ErrEmptyAsset = errors.New("asset symbol is required")
	// ErrUnknownSide trade side is neither buy nor sell.
	ErrUnknownSide = errors.New("unknown trade side")
	// ErrNoStakedPosition reward credited to an asset that is not staked.
	ErrNoStakedPosition = errors.New("asset has no staked position")
)

// BalanceError carries the asset and amounts behind an insufficient balance failure.
type BalanceError struct {
	Asset string
	Have  decimal.Decimal
	Need  decimal.Decimal
	Err   error
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s %s: have %s need %s", e.Err, strings.ToUpper(e.Asset), e.Have.String(), e.Need.String())
}

func (e *BalanceError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a rejected precondition rather than a failure.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidPrice, ErrSameAsset, ErrEmptyAsset, ErrUnknownSide, ErrNoStakedPosition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsBalanceError reports whether err is an insufficient liquid or staked balance failure.
func IsBalanceError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrInsufficientStakedBalance)
}
