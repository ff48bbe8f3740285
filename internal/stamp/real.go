package stamp

import (
	"bytes"
	"fmt"
	"math"
	"math/bits"
)

// ASN.1 REAL content octets (X.690 8.5) restricted to the DER subset (11.3):
// binary encoding, base 2, scale factor 0, odd mantissa, minimal exponent and
// mantissa octets. Zero has empty content.
const (
	realBinary   = 0x80
	realNegative = 0x40

	realPlusInf  = 0x40
	realMinusInf = 0x41
	realNaN      = 0x42
	realMinusZ   = 0x43

	// float64 mantissas never need more than 53 bits.
	maxMantissaOctets = 7
)

func marshalReal(v float64) []byte {
	switch {
	case math.IsNaN(v):
		return []byte{realNaN}
	case math.IsInf(v, 1):
		return []byte{realPlusInf}
	case math.IsInf(v, -1):
		return []byte{realMinusInf}
	case v == 0 && math.Signbit(v):
		return []byte{realMinusZ}
	case v == 0:
		return nil
	}

	first := byte(realBinary)
	if v < 0 {
		first |= realNegative
	}

	frac, exp := math.Frexp(math.Abs(v))
	mant := uint64(math.Ldexp(frac, 53))
	e := int64(exp - 53)
	tz := bits.TrailingZeros64(mant)
	mant >>= uint(tz)
	e += int64(tz)

	expOctets := appendSigned(nil, e)
	out := make([]byte, 0, 2+len(expOctets)+8)
	switch n := len(expOctets); n {
	case 1, 2, 3:
		out = append(out, first|byte(n-1))
	default:
		out = append(out, first|0x03, byte(n))
	}
	out = append(out, expOctets...)
	return appendUnsigned(out, mant)
}

func unmarshalReal(c []byte) (float64, error) {
	if len(c) == 0 {
		return 0, nil
	}
	first := c[0]
	if first&realBinary == 0 {
		if len(c) != 1 {
			return 0, fmt.Errorf("decimal REAL encoding not allowed")
		}
		switch first {
		case realPlusInf:
			return math.Inf(1), nil
		case realMinusInf:
			return math.Inf(-1), nil
		case realNaN:
			return math.NaN(), nil
		case realMinusZ:
			return math.Copysign(0, -1), nil
		}
		return 0, fmt.Errorf("unsupported REAL special value 0x%02X", first)
	}
	if first&0x30 != 0 {
		return 0, fmt.Errorf("REAL base must be 2")
	}
	if first&0x0C != 0 {
		return 0, fmt.Errorf("REAL scale factor must be 0")
	}

	pos := 1
	expLen := int(first&0x03) + 1
	if first&0x03 == 0x03 {
		if len(c) < 2 {
			return 0, fmt.Errorf("truncated REAL exponent length")
		}
		expLen = int(c[1])
		pos = 2
	}
	if expLen == 0 || expLen > 8 {
		return 0, fmt.Errorf("invalid REAL exponent length %d", expLen)
	}
	if len(c) < pos+expLen+1 {
		return 0, fmt.Errorf("truncated REAL")
	}
	var e int64
	for i, b := range c[pos : pos+expLen] {
		if i == 0 {
			e = int64(int8(b))
			continue
		}
		e = e<<8 | int64(b)
	}
	if e < -2048 || e > 2048 {
		return 0, fmt.Errorf("REAL exponent %d out of range", e)
	}
	mo := c[pos+expLen:]
	if len(mo) > maxMantissaOctets {
		return 0, fmt.Errorf("REAL mantissa too long")
	}
	var mant uint64
	for _, b := range mo {
		mant = mant<<8 | uint64(b)
	}
	if mant >= 1<<53 {
		return 0, fmt.Errorf("REAL mantissa exceeds float64 precision")
	}
	v := math.Ldexp(float64(mant), int(e))
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("REAL overflows float64")
	}
	if first&realNegative != 0 {
		v = -v
	}
	// Anything that does not re-encode identically is either non-canonical
	// (even mantissa, padded octets, long-form exponent) or inexact.
	if !bytes.Equal(marshalReal(v), c) {
		return 0, fmt.Errorf("non-canonical REAL encoding")
	}
	return v, nil
}

// appendSigned appends the minimal two's-complement octets of v.
func appendSigned(dst []byte, v int64) []byte {
	n := 1
	for x := v; x > 127 || x < -128; x >>= 8 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

// appendUnsigned appends the minimal big-endian octets of v (at least one).
func appendUnsigned(dst []byte, v uint64) []byte {
	n := 1
	for x := v; x > 0xFF; x >>= 8 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}
