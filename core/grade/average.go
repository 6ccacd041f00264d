package grade

import "math/big"

// QuartersCount is the number of marking periods in an academic year.
const QuartersCount = 4

// Quarters holds the quarterly marks of one student in one subject. A nil entry
// has not been entered yet. Entries are independent: any subset may be present.
type Quarters [QuartersCount]*float64

// Present returns the marks that have been entered, in quarter order.
func (q Quarters) Present() []float64 {
	marks := make([]float64, 0, QuartersCount)
	for _, m := range q {
		if m != nil {
			marks = append(marks, *m)
		}
	}
	return marks
}

// ComputeAnnualAverage returns the mean of the entered quarters rounded to two
// decimals (see Round), or nil when no quarter has been entered yet.
// The mean is taken over the entered quarters only, never over QuartersCount.
func ComputeAnnualAverage(q Quarters) *float64 {
	marks := q.Present()
	if len(marks) == 0 {
		return nil
	}
	avg := mean(marks)
	return &avg
}

// mean computes the rounded arithmetic mean in exact decimal arithmetic,
// so the result never depends on float summation order.
func mean(values []float64) float64 {
	sum := new(big.Rat)
	for _, v := range values {
		r, ok := toRat(v)
		if !ok {
			r = new(big.Rat).SetFloat64(v)
		}
		sum.Add(sum, r)
	}
	sum.Quo(sum, big.NewRat(int64(len(values)), 1))
	return roundRat(sum)
}
