// Package fixedpoint converts human-entered decimal amounts and prices into
// exchange-scale integers without going through binary floating point.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrOverflow        = errors.New("quantity overflows 256 bits")
)

// PrecisionDigits is the number of fractional digits preserved exactly when
// rounding a decimal input. Rounding happens once, at this precision, before
// the large-scale multiply, so the 1e18-scale result carries no float drift.
const PrecisionDigits = 6

var (
	// AmountScale scales a token amount to wei-style integers (1e18).
	AmountScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// PriceScale scales a price to pricepoints (1e6).
	PriceScale = big.NewInt(1_000_000)

	precisionFactor = big.NewInt(1_000_000) // 10^PrecisionDigits
)

// Normalize converts a non-negative decimal quantity into an integer at the
// given scale. The value is first rounded half-away-from-zero to
// PrecisionDigits fractional digits, then scaled with exact integer
// arithmetic: result = round(x * 1e6) * scale / 1e6.
func Normalize(x decimal.Decimal, scale *big.Int) (*big.Int, error) {
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrInvalidQuantity, x.String())
	}

	// Shift by PrecisionDigits and round to an integer. decimal.Round is
	// half-away-from-zero, matching the exchange's rounding convention.
	xi := x.Shift(PrecisionDigits).Round(0).BigInt()

	result := new(big.Int).Mul(xi, scale)
	result.Quo(result, precisionFactor)

	if result.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s at scale %s", ErrOverflow, x.String(), scale.String())
	}
	return result, nil
}

// NormalizeAmount converts a token amount to its 1e18-scale integer.
func NormalizeAmount(x decimal.Decimal) (*big.Int, error) {
	return Normalize(x, AmountScale)
}

// NormalizePrice converts a price to its 1e6-scale pricepoint.
func NormalizePrice(x decimal.Decimal) (*big.Int, error) {
	return Normalize(x, PriceScale)
}

// ParseQuantity parses a decimal string entered by a user.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	return d, nil
}
