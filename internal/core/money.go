// Package core holds the ledger's value types and the pure aggregation and
// goal-evaluation logic built on them.
//
// This file contains parsing of user-entered amounts into exact decimals.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input such as "10000", "10,000" or "12.5" into an
// exact decimal.
//
// Commas are treated as thousands separators and stripped. Signs, exponents,
// more than one decimal point and non-positive values are rejected with
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("15000")    -> 15000, nil
//	ParseAmount("1,234.50") -> 1234.5, nil
//	ParseAmount("-1")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case !unicode.IsDigit(r) || r > unicode.MaxASCII:
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if dots > 1 || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
