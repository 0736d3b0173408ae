package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	str := func(s string) *string { return &s }

	cases := []struct {
		name string
		in   *string
		want float64
	}{
		{"nil", nil, 0},
		{"empty", str(""), 0},
		{"blank", str("   "), 0},
		{"plain", str("150"), 150},
		{"decimal", str("12.50"), 12.5},
		{"padded", str(" 99.9 "), 99.9},
		{"garbage", str("abc"), 0},
		{"negative", str("-10"), 0},
		{"nan literal", str("NaN"), 0},
		{"inf literal", str("Inf"), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseAmount(tc.in))
		})
	}
}
