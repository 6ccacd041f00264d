package grade

import (
	"math"
	"math/big"
	"strconv"
)

// Round rounds v to two decimal places, ties away from zero (half-up for grades).
//
// Rounding happens on the shortest decimal representation of v using exact
// rational arithmetic, so 7.555 becomes 7.56 and 0.125 becomes 0.13 even though
// neither is exactly representable as a float64.
func Round(v float64) float64 {
	if v == 0 {
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, ok := toRat(v)
	if !ok {
		return v
	}
	return roundRat(r)
}

func toRat(v float64) (*big.Rat, bool) {
	return new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
}

// roundRat rounds r to two decimals, ties away from zero. r is consumed.
func roundRat(r *big.Rat) float64 {
	neg := r.Sign() < 0
	r.Abs(r)
	r.Mul(r, big.NewRat(100, 1))
	r.Add(r, big.NewRat(1, 2))

	cents := new(big.Int).Quo(r.Num(), r.Denom()) // r >= 0: truncation is floor
	if cents.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(cents, big.NewInt(100)).Float64()
	if neg {
		return -f
	}
	return f
}
