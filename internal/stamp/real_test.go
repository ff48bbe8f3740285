package stamp

import (
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMarshalReal_Golden(t *testing.T) {
	cases := []struct {
		v    float64
		want string
	}{
		{0, ""},
		{math.Copysign(0, -1), "43"},
		{math.Inf(1), "40"},
		{math.Inf(-1), "41"},
		{math.NaN(), "42"},
		{1, "800001"},
		{0.5, "80FF01"},
		{-2, "C00101"},
		{3, "800003"},
		{1024, "800A01"},
		{math.Ldexp(1, 200), "8100C801"},
		{math.SmallestNonzeroFloat64, "81FBCE01"},
		{0.1, "80C90CCCCCCCCCCCCD"},
		{42.636, "80D115516872B020C5"},
	}
	for _, tc := range cases {
		got := strings.ToUpper(hex.EncodeToString(marshalReal(tc.v)))
		assert.Equal(t, tc.want, got, "marshalReal(%v)", tc.v)

		back, err := unmarshalReal(marshalReal(tc.v))
		require.NoError(t, err, "unmarshalReal(%s)", tc.want)
		if math.IsNaN(tc.v) {
			assert.True(t, math.IsNaN(back))
			continue
		}
		assert.Equal(t, tc.v, back)
		assert.Equal(t, math.Signbit(tc.v), math.Signbit(back))
	}
}

func TestUnmarshalReal_RejectsNonCanonical(t *testing.T) {
	for _, in := range []string{
		"800002",               // even mantissa
		"80000001",             // padded mantissa
		"81000001",             // two exponent octets where one fits
		"8300010001",           // long-form exponent of length zero
		"8001",                 // no mantissa
		"90000001",             // base 8
		"84000001",             // scale factor 1
		"0331452B30",           // decimal NR3
		"44",                   // unknown special value
		"4300",                 // special value with trailing octet
		"80000000000000000001", // mantissa wider than float64
	} {
		b, err := hex.DecodeString(in)
		require.NoError(t, err)
		_, err = unmarshalReal(b)
		assert.Error(t, err, in)
	}
}

func TestReal_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64().Draw(t, "v")
		if math.IsNaN(v) {
			return
		}
		if rapid.Bool().Draw(t, "neg") {
			v = -v
		}
		enc := marshalReal(v)
		got, err := unmarshalReal(enc)
		if err != nil {
			t.Fatalf("unmarshalReal(% X) for %v: %v", enc, v, err)
		}
		if got != v || math.Signbit(got) != math.Signbit(v) {
			t.Fatalf("round trip %v -> % X -> %v", v, enc, got)
		}
	})
}
