// Package units converts user facing ether amounts to and from the ledger's base unit (wei) without ever going
// through a float.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits between ether and wei.
const Decimals = 18

// maxWeiDigits is the number of decimal digits of the largest 256-bit value.
const maxWeiDigits = 78

var (
	// ErrInvalidAmount is returned when an amount is negative, malformed, too precise or too large to be represented
	// in base units.
	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseEther converts a decimal ether string (e.g. "0.015") into wei. The conversion is exact: any input that would
// need rounding fails with ErrInvalidAmount.
func ParseEther(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}

	if d.IsZero() {
		return new(uint256.Int), nil
	}

	// check the magnitude on the digits before any big.Int of 10^exp gets built
	digits := strings.TrimLeft(d.Coefficient().String(), "-")
	significant := strings.TrimRight(digits, "0")
	exp := int64(d.Exponent()) + int64(len(digits)-len(significant)) + Decimals
	if exp < 0 {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, s, Decimals)
	}
	if exp+int64(len(significant)) > maxWeiDigits {
		return nil, fmt.Errorf("%w: %q does not fit in 256 bits", ErrInvalidAmount, s)
	}

	wei := d.Shift(Decimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, s, Decimals)
	}

	v, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %q does not fit in 256 bits", ErrInvalidAmount, s)
	}

	return v, nil
}

// ParseWei parses a base 10 wei string.
func ParseWei(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// FormatEther renders wei as an ether decimal string with trailing zeros trimmed.
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei.ToBig(), -Decimals).String()
}
