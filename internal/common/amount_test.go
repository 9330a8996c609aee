package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	testCases := map[string]struct {
		in        string
		want      string
		expectErr bool
	}{
		"integer":          {in: "10", want: "10"},
		"fraction":         {in: "0.024981", want: "0.024981"},
		"trailing zeros":   {in: " 10.500000 ", want: "10.5"},
		"too many digits":  {in: "0.0000001", expectErr: true},
		"empty":            {in: "", expectErr: true},
		"garbage":          {in: "ten", expectErr: true},
		"negative allowed": {in: "-1.5", want: "-1.5"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, FormatAmount(got))
		})
	}
}

func TestParsePositiveAmount(t *testing.T) {
	_, err := ParsePositiveAmount("0")
	require.Error(t, err)

	_, err = ParsePositiveAmount("-3")
	require.Error(t, err)

	d, err := ParsePositiveAmount("60000")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(60000)))
}

func TestFormatFixed(t *testing.T) {
	assert.Equal(t, "0.020000", FormatFixed(decimal.RequireFromString("0.02")))
	assert.Equal(t, "14.000000", FormatFixed(decimal.NewFromInt(14)))
}

func TestCompareAmounts(t *testing.T) {
	cmp, err := CompareAmounts("1.5", "1.50")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	cmp, err = CompareAmounts("2", "10")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	_, err = CompareAmounts("x", "1")
	require.Error(t, err)
}
