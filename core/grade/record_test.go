package grade

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_SetQuarter(t *testing.T) {
	var rec Record
	v := 8.0
	require.NoError(t, rec.SetQuarter(2, &v))
	v = 1 // the record keeps its own copy
	assert.Equal(t, Quarters{nil, mark(8), nil, nil}, rec.Quarters())

	require.NoError(t, rec.SetQuarter(2, nil))
	assert.Equal(t, Quarters{}, rec.Quarters())

	for _, n := range []int{0, 5, -1} {
		err := rec.SetQuarter(n, mark(5))
		assert.Equal(t, ErrInvalidQuarter, errors.Cause(err), "quarter %d", n)
	}
}

func TestRecord_Derive(t *testing.T) {
	cfg := DefaultConfig()

	// scenario: two quarters averaging exactly the passing grade
	rec := Record{Quarter1: mark(8), Quarter3: mark(6)}
	assert.True(t, rec.Derive(cfg))
	require.NotNil(t, rec.FinalAverage)
	assert.Equal(t, 7.0, *rec.FinalAverage)
	assert.Equal(t, StatusApproved, rec.Status)
	assert.False(t, rec.Derive(cfg), "derive is idempotent")

	// scenario: nothing entered yet
	rec = Record{}
	rec.Derive(cfg)
	assert.Nil(t, rec.FinalAverage)
	assert.Equal(t, StatusInProgress, rec.Status)

	// scenario: half-up rounding then failed
	rec = Record{}
	rec.SetQuarters(Quarters{mark(4), mark(5), mark(6), mark(6.5)})
	rec.Derive(cfg)
	assert.Equal(t, 5.38, *rec.FinalAverage)
	assert.Equal(t, StatusFailed, rec.Status)

	// scenario: clamped raw entry as the only quarter
	rec = Record{}
	require.NoError(t, rec.SetQuarter(1, cfg.NormalizeInput(StringInput("10,5"))))
	rec.Derive(cfg)
	assert.Equal(t, 10.0, *rec.FinalAverage)
	assert.Equal(t, StatusApproved, rec.Status)

	// a threshold change flips the status without touching the average
	rec = Record{Quarter1: mark(6.5)}
	rec.Derive(cfg)
	assert.Equal(t, StatusFailed, rec.Status)
	cfg.MinPassingGrade = 6
	assert.True(t, rec.Derive(cfg))
	assert.Equal(t, StatusApproved, rec.Status)

	// clearing the last quarter goes back to in progress
	require.NoError(t, rec.SetQuarter(1, nil))
	assert.True(t, rec.Derive(cfg))
	assert.Nil(t, rec.FinalAverage)
	assert.Equal(t, StatusInProgress, rec.Status)
}

func TestAttendanceRate(t *testing.T) {
	assert.Equal(t, 100.0, AttendanceRate(0, 0))
	assert.Equal(t, 100.0, AttendanceRate(20, 20))
	assert.Equal(t, 75.0, AttendanceRate(15, 20))
	assert.Equal(t, 66.67, AttendanceRate(2, 3))
	assert.Equal(t, 0.0, AttendanceRate(-1, 3))
	assert.Equal(t, 100.0, AttendanceRate(5, 3))
}

func TestNewReportCard(t *testing.T) {
	recs := []Record{
		{SubjectID: "math", FinalAverage: mark(8), Status: StatusApproved},
		{SubjectID: "history", FinalAverage: mark(5.5), Status: StatusFailed},
		{SubjectID: "science", Status: StatusInProgress},
		{SubjectID: "arts", FinalAverage: mark(7.25), Status: StatusApproved},
	}
	rc := newReportCard("s1", "st1", 2024, recs)
	assert.Equal(t, 2, rc.Approved)
	assert.Equal(t, 1, rc.Failed)
	assert.Equal(t, 1, rc.InProgress)
	require.NotNil(t, rc.OverallAverage)
	assert.Equal(t, 6.92, *rc.OverallAverage) // 20.75 / 3

	empty := newReportCard("s1", "st1", 2024, nil)
	assert.NotNil(t, empty.Records)
	assert.Nil(t, empty.OverallAverage)
}
