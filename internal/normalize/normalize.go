// Package normalize cleans heterogeneous amounts and order identifiers into
// canonical forms. Nothing in this package returns an error: unparseable
// input always degrades to a safe default.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// currencyCode matches an ISO currency code written before or after the
// number, as in "USD10.00".
var currencyCode = regexp.MustCompile(`^[A-Z]{3}|[A-Z]{3}$`)

// placeholders are the textual values that mean "no amount".
var placeholders = map[string]struct{}{
	"":     {},
	"-":    {},
	"N/A":  {},
	"null": {},
	"None": {},
}

// Known order id decorations. Only the first matching prefix and the first
// matching suffix are removed.
var (
	orderIDPrefixes = []string{"#", "order_", "ORDER_", "wc_order_"}
	orderIDSuffixes = []string{"_order", "_ORDER"}
)

// CleanAmount converts a raw cell value into a decimal amount.
//
// Strings may carry currency symbols, thousands separators and spaces.
// Parentheses and a leading minus both denote a negative value and never
// negate twice. Placeholders ("", "-", "N/A", "null", "None") and anything
// that still fails to parse yield zero.
func CleanAmount(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case decimal.NullDecimal:
		if !v.Valid {
			return decimal.Zero
		}
		return v.Decimal
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return decimal.NewFromInt(int64(v))
	case uint32:
		return decimal.NewFromInt(int64(v))
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case string:
		return cleanAmountString(v)
	case fmt.Stringer:
		return cleanAmountString(v.String())
	default:
		return cleanAmountString(fmt.Sprint(v))
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func cleanAmountString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if _, ok := placeholders[s]; ok {
		return decimal.Zero
	}

	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyCode.ReplaceAllString(s, "")
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	// Currency symbols are dropped. Any other letter or a second sign makes
	// the value unreadable.
	var digits strings.Builder
	for _, r := range s {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			digits.WriteRune(r)
		case r == '-' || r == '+' || unicode.IsLetter(r):
			return decimal.Zero
		}
	}
	s = digits.String()
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

// CleanQuantity converts a raw quantity into an integer, truncating any
// fractional part. Blank or unparseable input yields zero.
func CleanQuantity(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	}
	return int(CleanAmount(raw).IntPart())
}

// Money rounds an amount to cents.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NormalizeOrderID trims an order identifier and strips one known prefix and
// one known suffix. The result is a comparison key; callers keep the original
// value for display.
func NormalizeOrderID(raw string) string {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return normalized
	}

	for _, prefix := range orderIDPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			normalized = normalized[len(prefix):]
			break
		}
	}
	for _, suffix := range orderIDSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = normalized[:len(normalized)-len(suffix)]
			break
		}
	}

	return normalized
}

// CompareKey returns the case-folded normalized order id used to pair
// records across ledgers.
func CompareKey(raw string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(NormalizeOrderID(raw))
}

// EqualFold reports whether two labels are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}

// IsBlank reports whether a text value is empty after trimming.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
