package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the smallest unit of the currency (micro units).
const AmountDecimals = 6

// ParseAmount converts a decimal string into an amount without float precision loss.
// More than AmountDecimals fractional digits is an error rather than a silent truncation.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format: %w", err)
	}
	if !d.Equal(d.Truncate(AmountDecimals)) {
		return decimal.Zero, fmt.Errorf("amount has more than %d decimals", AmountDecimals)
	}
	return d, nil
}

// ParsePositiveAmount is ParseAmount restricted to values greater than zero.
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than zero")
	}
	return d, nil
}

// FormatAmount renders an amount in its shortest canonical form.
// Example: FormatAmount(10.500000) = "10.5"
//
// This is the form embedded in signing payloads; changing it invalidates existing signatures.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}

// FormatFixed renders an amount with all AmountDecimals digits for display.
// Example: FormatFixed(0.02) = "0.020000"
func FormatFixed(d decimal.Decimal) string {
	return d.StringFixed(AmountDecimals)
}

// CompareAmounts compares two decimal string amounts without float precision loss.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b, and error if parsing fails
func CompareAmounts(a, b string) (int, error) {
	aVal, err := ParseAmount(a)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount '%s': %w", a, err)
	}

	bVal, err := ParseAmount(b)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount '%s': %w", b, err)
	}

	return aVal.Cmp(bVal), nil
}
