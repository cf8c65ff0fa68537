/**
 * @description
 * Currency display formatting for wallet balances and transaction amounts.
 * Amounts arrive as decimals and are rendered with locale separators supplied
 * by configuration rather than derived from the host locale.
 */

package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Formatter renders decimal amounts for display.
type Formatter struct {
	Symbol    string
	Thousands string
	Decimal   string
	Places    int32
}

// Default is the formatter used when configuration provides nothing.
var Default = Formatter{Symbol: "₱", Thousands: ",", Decimal: ".", Places: 2}

// Format renders amount as e.g. "₱1,234,567.50". Negative values are rendered "-₱12.00".
func (f Formatter) Format(amount decimal.Decimal) string {
	places := f.Places
	if places < 0 {
		places = 0
	}
	decimalSep := f.Decimal
	if decimalSep == "" {
		decimalSep = "."
	}

	negative := amount.Sign() < 0
	fixed := amount.Abs().StringFixed(places)

	whole, frac := fixed, ""
	if idx := strings.IndexByte(fixed, '.'); idx >= 0 {
		whole, frac = fixed[:idx], fixed[idx+1:]
	}

	var b strings.Builder
	if negative && !isZero(whole, frac) {
		b.WriteByte('-')
	}
	b.WriteString(f.Symbol)
	b.WriteString(group(whole, f.Thousands))
	if frac != "" {
		b.WriteString(decimalSep)
		b.WriteString(frac)
	}
	return b.String()
}

// group inserts sep every three digits from the right.
func group(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// isZero avoids printing "-₱0.00" when rounding swallows a tiny negative value.
func isZero(whole, frac string) bool {
	return strings.Trim(whole, "0") == "" && strings.Trim(frac, "0") == ""
}
