package core

import "math/bits"

// Resolution converts raw counter ticks (at the counter input frequency)
// into ticks at a caller chosen output frequency.
//
// The ratio is reduced once at construction. Conversions multiply first
// into a 128-bit intermediate and then divide, truncating toward zero, so
// the same input always gives the same output.
type Resolution struct {
	InputHz  uint64
	OutputHz uint64

	num uint64 // OutputHz / gcd
	den uint64 // InputHz / gcd
}

// NewResolution builds a conversion from inputHz to outputHz
func NewResolution(inputHz, outputHz uint64) (Resolution, error) {
	if inputHz == 0 || outputHz == 0 {
		return Resolution{}, ErrZeroFrequency
	}
	g := gcd(inputHz, outputHz)
	return Resolution{
		InputHz:  inputHz,
		OutputHz: outputHz,
		num:      outputHz / g,
		den:      inputHz / g,
	}, nil
}

// Scale converts raw ticks to output ticks
func (r Resolution) Scale(raw uint64) uint64 {
	return mulDiv(raw, r.num, r.den)
}

// Unscale converts output ticks back to raw ticks
func (r Resolution) Unscale(ticks uint64) uint64 {
	return mulDiv(ticks, r.den, r.num)
}

// Ratio returns the reduced output/input ratio
func (r Resolution) Ratio() (num, den uint64) {
	return r.num, r.den
}

// IsIdentity reports whether input and output frequencies match
func (r Resolution) IsIdentity() bool {
	return r.num == r.den
}

// mulDiv returns the low 64 bits of floor(x*mul/div).
// div must be non-zero.
func mulDiv(x, mul, div uint64) uint64 {
	if mul == div {
		return x
	}
	hi, lo := bits.Mul64(x, mul)
	if hi >= div {
		// Quotient does not fit in 64 bits. Past the supported lifetime,
		// but Div64 would panic, so keep the low word.
		hi %= div
	}
	q, _ := bits.Div64(hi, lo, div)
	return q
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
