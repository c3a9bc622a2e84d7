package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits stored for every amount and balance.
const MoneyScale = 2

// MaxPostingAmount caps a single posting.
var MaxPostingAmount = decimal.NewFromInt(10_000_000_000)

// MaxBalance is the largest balance a NUMERIC(18,2) column holds.
var MaxBalance = decimal.RequireFromString("9999999999999999.99")

// Exponent bounds for a parsed amount. Anything outside cannot be a valid
// posting, and comparing it would rescale to a 10^|exp| big integer.
const (
	minAmountExponent = -(MoneyScale + 16)
	maxAmountExponent = 16
)

var (
	ErrAmountMalformed   = errors.New("amount is not a decimal number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = fmt.Errorf("amount has more than %d fractional digits", MoneyScale)
	ErrAmountTooLarge    = errors.New("amount exceeds the per-posting limit")
)

// ParseAmount parses a posting amount given as a decimal literal. Binary
// floating point is never involved.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrAmountMalformed
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrAmountMalformed
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if exp := amount.Exponent(); exp < minAmountExponent {
		return ErrAmountPrecision
	} else if exp > maxAmountExponent {
		return ErrAmountTooLarge
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return ErrAmountPrecision
	}
	if amount.GreaterThan(MaxPostingAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// FormatMoney renders an amount with exactly MoneyScale fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
