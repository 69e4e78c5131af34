package amount

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAtomic(t *testing.T) {
	var tests = []struct {
		name     string
		amount   string
		decimals uint
		expected string
		err      error
	}{
		{"whole", "2", 6, "2000000", nil},
		{"fraction", "1.5", 6, "1500000", nil},
		{"trailing zero", "2.50", 6, "2500000", nil},
		{"smallest unit", "0.000001", 6, "1", nil},
		{"leading zeros", "0007.1", 2, "710", nil},
		{"eighteen decimals", "1.000000000000000001", 18, "1000000000000000001", nil},
		{"no decimals", "42", 0, "42", nil},
		{"surrounding space", " 3.25 ", 2, "", ErrInvalidAmountFormat},
		{"max decimals", "1", MaxDecimals, "1" + strings.Repeat("0", MaxDecimals), nil},
		{"decimals out of range", "1", 100000000000, "", ErrDecimalsOutOfRange},
		{"zero", "0", 6, "", ErrAmountNotPositive},
		{"zero fraction", "0.000000", 6, "", ErrAmountNotPositive},
		{"empty", "", 6, "", ErrInvalidAmountFormat},
		{"negative", "-1", 6, "", ErrInvalidAmountFormat},
		{"exponent", "1e6", 6, "", ErrInvalidAmountFormat},
		{"trailing dot", "1.", 6, "", ErrInvalidAmountFormat},
		{"comma", "1,5", 6, "", ErrInvalidAmountFormat},
		{"too precise", "1.1234567", 6, "", ErrPrecisionExceeded},
		{"fraction on zero decimals", "1.0", 0, "", ErrPrecisionExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToAtomic(tt.amount, tt.decimals)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, got)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToDecimal(t *testing.T) {
	var tests = []struct {
		atomic   string
		decimals uint
		expected string
	}{
		{"1500000", 6, "1.5"},
		{"2500000", 6, "2.5"},
		{"1", 6, "0.000001"},
		{"1000000", 6, "1"},
		{"000123", 2, "1.23"},
		{"42", 0, "42"},
		{"", 6, "0"},
		{"0", 6, "0"},
		{"1,500,000", 6, "1.5"},
		{"1000000000000000001", 18, "1.000000000000000001"},
		{"7", 100000000000, ""},
	}

	for _, tt := range tests {
		t.Run(tt.atomic, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToDecimal(tt.atomic, tt.decimals))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	samples := []string{"1", "1.5", "2.50", "0.1", "10.000", "123456789.987654321", "0.000000000000000001", "007.70"}

	for decimals := uint(0); decimals <= 18; decimals++ {
		for _, s := range samples {
			_, frac, _ := strings.Cut(s, ".")
			if uint(len(frac)) > decimals {
				continue
			}

			t.Run(fmt.Sprintf("%s/%d", s, decimals), func(t *testing.T) {
				atomic, err := ToAtomic(s, decimals)
				require.NoError(t, err)

				normalized, err := NormalizeDecimal(s)
				require.NoError(t, err)

				assert.Equal(t, normalized, ToDecimal(atomic, decimals))
			})
		}
	}
}

func TestNormalizeAtomic(t *testing.T) {
	got, err := NormalizeAtomic(" 0002500000 ")
	assert.NoError(t, err)
	assert.Equal(t, "2500000", got)

	_, err = NormalizeAtomic("000")
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = NormalizeAtomic("abc")
	assert.ErrorIs(t, err, ErrInvalidAmountFormat)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("2.50", FormatDecimal, 6)
	assert.NoError(t, err)
	assert.Equal(t, "2500000", got)

	got, err = Normalize("2500000", FormatAtomic, 6)
	assert.NoError(t, err)
	assert.Equal(t, "2500000", got)

	got, err = Normalize("1", "", 2)
	assert.NoError(t, err)
	assert.Equal(t, "100", got)

	_, err = Normalize("1", "float", 2)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "2.50", Display("2500000", 6, 2))
	assert.Equal(t, "0.000001", Display("1", 6, 2))
	assert.Equal(t, "3.00", Display("3", 0, 2))
}
