package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds x to two decimal places the way numpy does: the binary value
// is scaled by 100, rounded half to even, then scaled back. 2.345 therefore
// rounds up, because 2.345*100 is 234.50000000000003. Non-finite values are
// returned unchanged.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	cents := math.RoundToEven(x * 100)
	return decimal.NewFromFloat(cents).Shift(-2).InexactFloat64()
}
