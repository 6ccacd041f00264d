package grade

import (
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidQuarter = errors.New("quarter must be between 1 and 4")

// Record is the grade sheet of one student in one subject for one academic year.
// FinalAverage and Status are derived from the quarters; see Derive.
type Record struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	StudentID    string    `json:"student_id"`
	SubjectID    string    `json:"subject_id"`
	ClassID      string    `json:"class_id,omitempty"`
	AcademicYear int       `json:"academic_year"`
	Quarter1     *float64  `json:"quarter1"`
	Quarter2     *float64  `json:"quarter2"`
	Quarter3     *float64  `json:"quarter3"`
	Quarter4     *float64  `json:"quarter4"`
	FinalAverage *float64  `json:"final_average"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r Record) Quarters() Quarters {
	return Quarters{r.Quarter1, r.Quarter2, r.Quarter3, r.Quarter4}
}

func (r *Record) quarter(n int) (**float64, error) {
	switch n {
	case 1:
		return &r.Quarter1, nil
	case 2:
		return &r.Quarter2, nil
	case 3:
		return &r.Quarter3, nil
	case 4:
		return &r.Quarter4, nil
	}
	return nil, errors.Wrapf(ErrInvalidQuarter, "quarter %d", n)
}

// SetQuarter sets quarter n (1-based). A nil v clears the quarter.
// The caller is expected to Derive afterwards.
func (r *Record) SetQuarter(n int, v *float64) error {
	q, err := r.quarter(n)
	if err != nil {
		return err
	}
	*q = copyMark(v)
	return nil
}

func (r *Record) SetQuarters(q Quarters) {
	r.Quarter1 = copyMark(q[0])
	r.Quarter2 = copyMark(q[1])
	r.Quarter3 = copyMark(q[2])
	r.Quarter4 = copyMark(q[3])
}

// Derive recomputes FinalAverage and Status from the quarters under cfg.
// It reports whether either of them changed.
func (r *Record) Derive(cfg Config) bool {
	avg := ComputeAnnualAverage(r.Quarters())
	status := cfg.EvaluateStatus(avg)

	changed := !sameMark(r.FinalAverage, avg) || r.Status != status
	r.FinalAverage = avg
	r.Status = status
	return changed
}

func copyMark(v *float64) *float64 {
	if v == nil {
		return nil
	}
	m := *v
	return &m
}

func sameMark(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
