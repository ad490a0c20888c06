// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals end to end so GST on fractional rupees
// never picks up binary floating point error.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxAmountDigits bounds the integer part of a user supplied amount.
const maxAmountDigits = 12

// ParseAmount converts a user supplied rupee amount into a decimal.
//
// Thousands separators (commas, spaces) and a leading rupee sign are
// ignored. At most two fractional digits are accepted. Negative, zero and
// malformed values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("1000")      -> 1000, nil
//	ParseAmount("1,23,456.5") -> 123456.5, nil
//	ParseAmount("₹ 99.99")   -> 99.99, nil
//	ParseAmount("12.345")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(intPart) > maxAmountDigits || len(fracPart) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	norm := intPart
	if fracPart != "" {
		norm += "." + fracPart
	}
	d, err := decimal.NewFromString(norm)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatRupees renders d with Indian digit grouping and two decimals,
// e.g. "₹1,23,456.50".
func FormatRupees(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixedBank(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	b.WriteString("₹")
	b.WriteString(groupIndian(intPart))
	b.WriteString(".")
	b.WriteString(frac)
	return b.String()
}

// groupIndian inserts separators after the last three digits and then every
// two digits (lakh/crore grouping).
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
