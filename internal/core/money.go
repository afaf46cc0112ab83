// Package core provides amount parsing and rounding utilities.
//
// Ledger amounts are plain float64 values. User input is parsed through
// shopspring/decimal so that "0.1" + "0.2" style inputs are rounded once, at
// the edge, instead of accumulating binary representation noise.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied amount to a positive float rounded to
// two decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and ignores
// spaces used as thousands separators. Rounding is half away from zero.
// Returns ErrInvalidAmount for signed, malformed or zero values.
//
// Examples:
//
//	ParseAmount("12.34")   -> 12.34, nil
//	ParseAmount("1 500,5") -> 1500.5, nil
//	ParseAmount("12.345")  -> 12.35, nil
//	ParseAmount("-1")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents; amounts typed by people never carry one
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// Round2 rounds a computed value to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Percent returns part as a percentage of whole, or 0 when whole is not positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part * 100 / whole
}
