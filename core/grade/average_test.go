package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mark(v float64) *float64 { return &v }

func TestComputeAnnualAverage(t *testing.T) {
	tests := []struct {
		name string
		q    Quarters
		want *float64
	}{
		{name: "no quarters", q: Quarters{}, want: nil},
		{name: "one quarter", q: Quarters{nil, nil, mark(6.5), nil}, want: mark(6.5)},
		{name: "two quarters", q: Quarters{mark(8), nil, mark(6), nil}, want: mark(7)},
		{name: "mean over present only", q: Quarters{mark(7), mark(8), nil, nil}, want: mark(7.5)},
		{name: "all quarters", q: Quarters{mark(10), mark(10), mark(10), mark(10)}, want: mark(10)},
		{name: "half-up", q: Quarters{mark(4), mark(5), mark(6), mark(6.5)}, want: mark(5.38)},
		{name: "repeating decimal", q: Quarters{mark(7), mark(8), mark(8), nil}, want: mark(7.67)},
		{name: "exact tie despite binary sum", q: Quarters{mark(6.5), mark(7.51), nil, nil}, want: mark(7.01)},
		{name: "no float drift", q: Quarters{mark(0.1), mark(0.2), nil, nil}, want: mark(0.15)},
		{name: "zeros are grades", q: Quarters{mark(0), nil, nil, mark(0)}, want: mark(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAnnualAverage(tt.q)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

// Every subset of quarters averages to the rounded mean of its members.
func TestComputeAnnualAverage_subsets(t *testing.T) {
	values := [QuartersCount]float64{9.5, 3.25, 7, 10}
	for mask := 0; mask < 1<<QuartersCount; mask++ {
		var (
			q   Quarters
			sum float64
			n   int
		)
		for i := 0; i < QuartersCount; i++ {
			if mask&(1<<i) != 0 {
				q[i] = mark(values[i])
				sum += values[i]
				n++
			}
		}

		got := ComputeAnnualAverage(q)
		if n == 0 {
			assert.Nil(t, got, "mask %04b", mask)
			continue
		}
		require.NotNil(t, got, "mask %04b", mask)
		assert.Equal(t, Round(sum/float64(n)), *got, "mask %04b", mask)

		again := ComputeAnnualAverage(q)
		assert.Equal(t, *got, *again, "idempotent, mask %04b", mask)
	}
}

func TestQuarters_Present(t *testing.T) {
	q := Quarters{nil, mark(5), nil, mark(9)}
	assert.Equal(t, []float64{5, 9}, q.Present())
	assert.Empty(t, Quarters{}.Present())
}
