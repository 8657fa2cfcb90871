// Package money holds exact-decimal helpers shared by the Quote Service,
// Inventory Ledger, Order Engine and Webhook Reconciler. Every monetary or
// token amount in this codebase flows through shopspring/decimal; float64
// never appears on a money path.
package money

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned by ParseIDR when the input cannot be resolved
// to a positive integer rupiah amount.
var ErrInvalidAmount = errors.New("invalid amount")

// MaxIDR is the upper bound accepted for any single IDR amount.
const MaxIDR = 1_000_000_000_000 // 10^12

var (
	prefixPattern    = regexp.MustCompile(`(?i)^\s*(rp\.?|idr)\s*`)
	dotThousandsRe   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	commaThousandsRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// ParseIDR accepts "100.000" (dot thousands), "100,000" (comma thousands),
// "100000" (plain), with an optional "Rp"/"IDR" prefix, and an optional
// 1-2 digit decimal remainder that is dropped when the part before it is a
// plain or thousands-grouped integer (e.g. "Rp 50.000,50" -> 50000). It resolves to a
// positive integer no larger than MaxIDR, or returns ErrInvalidAmount.
func ParseIDR(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = prefixPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	// Split off a trailing decimal remainder introduced by a comma when the
	// integer part is dot-grouped, or by a dot when the integer part is
	// comma-grouped. A bare "100.50" (no thousands grouping) is treated as
	// having its fractional part dropped, per spec.
	integerPart := s
	if idx := strings.LastIndexAny(s, ".,"); idx >= 0 {
		candidate := s[:idx]
		sep := s[idx]
		rest := s[idx+1:]
		// Only treat the trailing separator as a decimal point (to be
		// dropped) if what precedes it already reads as a valid grouped or
		// plain integer of its own, and the remainder is 1-2 digits (a
		// sensible fractional length).
		if isDigits(rest) && len(rest) <= 2 && isPlainOrGrouped(candidate) {
			integerPart = candidate
			_ = sep
		}
	}

	normalized := normalizeGrouping(integerPart)
	if normalized == "" {
		return 0, ErrInvalidAmount
	}

	value, err := strconv.ParseInt(normalized, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if value <= 0 || value > MaxIDR {
		return 0, ErrInvalidAmount
	}
	return value, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isPlainOrGrouped(s string) bool {
	if isDigits(s) {
		return true
	}
	return dotThousandsRe.MatchString(s) || commaThousandsRe.MatchString(s)
}

// normalizeGrouping strips thousands separators (either "." or ",") from a
// grouped or plain digit string; returns "" if the string isn't one of
// those shapes.
func normalizeGrouping(s string) string {
	if isDigits(s) {
		return s
	}
	if dotThousandsRe.MatchString(s) {
		return strings.ReplaceAll(s, ".", "")
	}
	if commaThousandsRe.MatchString(s) {
		return strings.ReplaceAll(s, ",", "")
	}
	return ""
}

// DecimalFromIDR converts a whole-rupiah integer into a decimal.Decimal,
// the representation used everywhere downstream of parsing.
func DecimalFromIDR(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}
