// Package amount converts between human decimal token amounts and the
// integer atomic units used on chain. All conversions are done on digit
// strings so no precision is lost for tokens with up to 18 decimals.
package amount

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	FormatDecimal = "decimal"
	FormatAtomic  = "atomic"

	// MaxDecimals is the most decimals a token can have: a uint256 has 78
	// digits.
	MaxDecimals = 77
)

var (
	decimalRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
	nonDigit  = regexp.MustCompile(`[^0-9]`)
)

// ToAtomic converts a decimal amount such as "2.50" into atomic units for a
// token with the given decimals ("2500000" for 6 decimals).
func ToAtomic(amount string, decimals uint) (string, error) {
	if decimals > MaxDecimals {
		return "", fmt.Errorf("%w: %d", ErrDecimalsOutOfRange, decimals)
	}
	if !decimalRe.MatchString(amount) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmountFormat, amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if uint(len(frac)) > decimals {
		return "", fmt.Errorf("%w: %d fractional digits, token allows %d", ErrPrecisionExceeded, len(frac), decimals)
	}

	frac += strings.Repeat("0", int(decimals)-len(frac))

	atomic := strings.TrimLeft(whole+frac, "0")
	if atomic == "" {
		return "", ErrAmountNotPositive
	}

	return atomic, nil
}

// ToDecimal renders atomic units as a decimal string with insignificant
// zeros removed. Non-digit characters are dropped before conversion.
// Decimals above MaxDecimals yield an empty string.
func ToDecimal(atomic string, decimals uint) string {
	if decimals > MaxDecimals {
		return ""
	}
	digits := nonDigit.ReplaceAllString(atomic, "")

	if pad := int(decimals) - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}

	split := len(digits) - int(decimals)
	whole := strings.TrimLeft(digits[:split], "0")
	frac := strings.TrimRight(digits[split:], "0")

	if whole == "" {
		whole = "0"
	}
	if frac == "" {
		return whole
	}

	return whole + "." + frac
}

// NormalizeAtomic sanitizes a pre-converted atomic amount. The result is a
// minimal positive digit string.
func NormalizeAtomic(atomic string) (string, error) {
	digits := nonDigit.ReplaceAllString(strings.TrimSpace(atomic), "")
	if digits == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmountFormat, atomic)
	}

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", ErrAmountNotPositive
	}

	return digits, nil
}

// Normalize converts a configured amount into atomic units. Amounts stored
// with the atomic format flag skip decimal conversion.
func Normalize(amount, format string, decimals uint) (string, error) {
	switch format {
	case FormatAtomic:
		return NormalizeAtomic(amount)
	case FormatDecimal, "":
		return ToAtomic(amount, decimals)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// NormalizeDecimal strips insignificant zeros from a decimal string, so
// "002.500" becomes "2.5".
func NormalizeDecimal(amount string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmountFormat, err)
	}

	return d.String(), nil
}

// Display renders an atomic amount for people padded to at least places
// decimal places ("2.5" becomes "2.50"). Amounts with more significant
// digits than places are never rounded.
func Display(atomic string, decimals uint, places int32) string {
	human := ToDecimal(atomic, decimals)

	d, err := decimal.NewFromString(human)
	if err != nil || -d.Exponent() > places {
		return human
	}

	return d.StringFixed(places)
}
