// Package core provides the transaction model and the pure functions the
// view is built from.
//
// This file contains the Amount type. Amounts are kept as decimals so values
// coming back from the store render exactly as they were sent.
package core

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// maxAmountLen bounds user-entered amounts. Exponent notation is not accepted.
const maxAmountLen = 32

var plainAmount = regexp.MustCompile(`^[+-]?[0-9]+([.,][0-9]+)?$`)

// Amount is a signed decimal. Sign and currency semantics belong to whoever
// owns the data; the view only carries and displays the value.
type Amount struct {
	decimal.Decimal
}

// ParseAmount reads a user-entered amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Surrounding whitespace is ignored. Exponents and
// values longer than maxAmountLen are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-5")     -> -5, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
//	ParseAmount("1e9")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen || !plainAmount.MatchString(s) {
		return Amount{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{Decimal: d}, nil
}

// MarshalJSON emits the amount as a bare JSON number, which is what JSON
// stores expect.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers and quoted numbers.
func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// Equal compares amounts by value, so 1.50 equals 1.5.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}
