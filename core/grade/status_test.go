package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateStatus(t *testing.T) {
	tests := []struct {
		name      string
		avg       *float64
		threshold float64
		want      Status
	}{
		{name: "absent", avg: nil, threshold: 7, want: StatusInProgress},
		{name: "absent, any threshold", avg: nil, threshold: 0, want: StatusInProgress},
		{name: "boundary is inclusive", avg: mark(7), threshold: 7, want: StatusApproved},
		{name: "above", avg: mark(9.5), threshold: 7, want: StatusApproved},
		{name: "just below", avg: mark(6.99), threshold: 7, want: StatusFailed},
		{name: "zero", avg: mark(0), threshold: 7, want: StatusFailed},
		{name: "custom threshold", avg: mark(6), threshold: 6, want: StatusApproved},
		{name: "custom threshold, below", avg: mark(5.99), threshold: 6, want: StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateStatus(tt.avg, tt.threshold))
		})
	}
}

func TestEvaluateStatus_thresholdRange(t *testing.T) {
	for th := 0.0; th <= 10; th += 0.25 {
		assert.Equal(t, StatusApproved, EvaluateStatus(mark(th), th), "threshold %v", th)
		if th > 0 {
			assert.Equal(t, StatusFailed, EvaluateStatus(mark(th-0.01), th), "threshold %v", th)
		}
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("pendente").Valid())
}
