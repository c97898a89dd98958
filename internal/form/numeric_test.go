package form

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		raw  string
		want string
	}{
		{name: "currency groups thousands", kind: KindCurrency, raw: "1234567", want: "1,234,567"},
		{name: "currency re-groups formatted input", kind: KindCurrency, raw: "1,2345", want: "12,345"},
		{name: "currency strips leading zeros", kind: KindCurrency, raw: "000120", want: "120"},
		{name: "currency zero rests at zero", kind: KindCurrency, raw: "000", want: "0"},
		{name: "currency empty stays empty", kind: KindCurrency, raw: "", want: ""},
		{name: "currency drops glyph and letters", kind: KindCurrency, raw: "¥12a3", want: "123"},
		{name: "currency folds full-width digits", kind: KindCurrency, raw: "１２３４", want: "1,234"},
		{name: "percentage zero is empty", kind: KindPercentage, raw: "0", want: ""},
		{name: "percentage strips leading zeros", kind: KindPercentage, raw: "045", want: "45"},
		{name: "percentage drops symbols", kind: KindPercentage, raw: "30%", want: "30"},
		{name: "count keeps zero", kind: KindCount, raw: "0", want: "0"},
		{name: "count strips leading zeros", kind: KindCount, raw: "02", want: "2"},
		{name: "digits drops separators", kind: KindDigits, raw: "090-1234-5678", want: "09012345678"},
		{name: "text untouched", kind: KindText, raw: " 株式会社 ", want: " 株式会社 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeInput(tt.kind, tt.raw)
			assert.Equal(t, tt.want, got)
			// keystroke normalization is idempotent
			assert.Equal(t, got, NormalizeInput(tt.kind, got))
		})
	}
}

func TestNormalizeBlur(t *testing.T) {
	assert.Equal(t, "0", NormalizeBlur(KindCurrency, ""))
	assert.Equal(t, "1,000", NormalizeBlur(KindCurrency, "1,000"))
	assert.Equal(t, "", NormalizeBlur(KindPercentage, ""))
	assert.Equal(t, "", NormalizeBlur(KindCount, ""))
}

func TestFormatRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 12, 999, 1000, 1234567, 100000000, MaxAmount} {
		t.Run(strconv.FormatInt(n, 10), func(t *testing.T) {
			formatted := FormatNumber(strconv.FormatInt(n, 10))
			back, err := ParseAmount(formatted)
			require.NoError(t, err)
			assert.Equal(t, n, back)

			back, err = ParseAmount(FormatCurrency(formatted))
			require.NoError(t, err)
			assert.Equal(t, n, back)

			// formatting a formatted value changes nothing
			assert.Equal(t, formatted, FormatNumber(formatted))
		})
	}

	assert.Equal(t, "1,234,567", FormatNumber("1234567"))
	assert.Equal(t, "¥1,234,567", FormatCurrency("1234567"))
	assert.Equal(t, "¥0", FormatCurrency(""))
	assert.Equal(t, "¥160,000", FormatYen(160000))
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount(" ￥１,０００ ")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	n, err = ParseAmount("")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = ParseAmount("12abc")
	assert.Error(t, err)

	_, err = ParseAmount("-5")
	assert.Error(t, err)
}
