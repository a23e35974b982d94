// Package money provides fixed-point monetary arithmetic on int64 values
// scaled to three decimal places. Three places cover both currency amounts
// and scale weights, so quantities and prices share one representation.
// Rounding is half-up, away from zero, and every operation that rounds does
// so exactly once.
package money

import "fmt"

// Decimal is a fixed-point number with three decimal places. A Decimal of
// 3345 reads as 3.345.
type Decimal int64

const scale = 3

var pow10 = [...]int64{1, 10, 100, 1000}

// FromInt returns v as a whole-unit Decimal.
func FromInt(v int64) Decimal {
	return Decimal(v * pow10[scale])
}

// Cents returns a Decimal worth v hundredths.
func Cents(v int64) Decimal {
	return Decimal(v * 10)
}

// Units returns a Decimal from a raw thousandths count, the wire encoding
// used for weights and quantities.
func Units(v int64) Decimal {
	return Decimal(v)
}

// Units reports the raw thousandths count.
func (d Decimal) Units() int64 {
	return int64(d)
}

// Cents reports d rounded to hundredths, as a count of cents.
func (d Decimal) Cents() int64 {
	return divHalfUp(int64(d), 10)
}

func (d Decimal) Add(o Decimal) Decimal { return d + o }
func (d Decimal) Sub(o Decimal) Decimal { return d - o }
func (d Decimal) Neg() Decimal          { return -d }

// Mul multiplies two Decimals, rounding the product half-up at three
// places. Used for price x quantity where quantity may be a weight.
func (d Decimal) Mul(o Decimal) Decimal {
	return Decimal(divHalfUp(int64(d)*int64(o), pow10[scale]))
}

// MulRatAt multiplies d by the rational num/den and rounds half-up at
// places decimal places, in a single step. Splitting the multiply from the
// rounding would round twice and drift: 5.29 x 529/10000 is 0.279841,
// which must land on 0.28 directly, not via 0.280.
func (d Decimal) MulRatAt(num, den int64, places int) Decimal {
	if den == 0 {
		return 0
	}
	if den < 0 {
		num, den = -num, -den
	}
	if places < 0 {
		places = 0
	}
	if places > scale {
		places = scale
	}
	step := pow10[scale-places]
	return Decimal(divHalfUp(int64(d)*num, den*step) * step)
}

// RoundHalfUp rounds d to places decimal places, half away from zero.
func (d Decimal) RoundHalfUp(places int) Decimal {
	if places < 0 {
		places = 0
	}
	if places >= scale {
		return d
	}
	step := pow10[scale-places]
	return Decimal(divHalfUp(int64(d), step) * step)
}

// String formats d with all three decimal places, e.g. "3.345".
func (d Decimal) String() string {
	n := int64(d)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%03d", sign, n/pow10[scale], n%pow10[scale])
}

// MoneyString formats d rounded to hundredths, e.g. "3.35", the form
// printed on receipts.
func (d Decimal) MoneyString() string {
	c := d.Cents()
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// divHalfUp divides n by d rounding half away from zero. d must be
// positive.
func divHalfUp(n, d int64) int64 {
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}
