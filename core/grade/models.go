package grade

import (
	"net/mail"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
)

// NewRecord contains the information needed to open a grade sheet.
// Quarters are raw entries; they are normalized under the school's config.
type NewRecord struct {
	StudentID    string `json:"student_id" validate:"required,notblank"`
	SubjectID    string `json:"subject_id" validate:"required,notblank"`
	ClassID      string `json:"class_id"`
	AcademicYear int    `json:"academic_year" validate:"required,academicyear"`
	Quarter1     Input  `json:"quarter1"`
	Quarter2     Input  `json:"quarter2"`
	Quarter3     Input  `json:"quarter3"`
	Quarter4     Input  `json:"quarter4"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.SubjectID = core.CleanString(nr.SubjectID)
	nr.ClassID = core.CleanString(nr.ClassID)
	return validate.Struct(nr)
}

func (nr NewRecord) inputs() [QuartersCount]Input {
	return [QuartersCount]Input{nr.Quarter1, nr.Quarter2, nr.Quarter3, nr.Quarter4}
}

// UpdateQuarter sets (or clears, with a null value) a single quarter.
type UpdateQuarter struct {
	Quarter int   `json:"quarter" validate:"required,min=1,max=4"`
	Value   Input `json:"value"`
}

func (uq UpdateQuarter) Validate(validate *validator.Validate) error {
	return validate.Struct(uq)
}

// UpdateQuarters replaces all four quarters at once. Null entries clear their quarter.
type UpdateQuarters struct {
	ClassID  *string `json:"class_id"`
	Quarter1 Input   `json:"quarter1"`
	Quarter2 Input   `json:"quarter2"`
	Quarter3 Input   `json:"quarter3"`
	Quarter4 Input   `json:"quarter4"`
}

func (uq *UpdateQuarters) Validate(validate *validator.Validate) error {
	if uq.ClassID != nil {
		classID := core.CleanString(*uq.ClassID)
		uq.ClassID = &classID
	}
	return validate.Struct(uq)
}

func (uq UpdateQuarters) inputs() [QuartersCount]Input {
	return [QuartersCount]Input{uq.Quarter1, uq.Quarter2, uq.Quarter3, uq.Quarter4}
}

// UpdateSettings overrides a school's grading parameters.
type UpdateSettings struct {
	MinPassingGrade *float64 `json:"min_passing_grade" validate:"required"`
	MinGrade        *float64 `json:"min_grade" validate:"required"`
	MaxGrade        *float64 `json:"max_grade" validate:"required"`
	OutOfRange      string   `json:"out_of_range" validate:"omitempty,oneof=clamp reject"`
}

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	us.OutOfRange = core.CleanString(us.OutOfRange, true /* lower */)
	return validate.Struct(us)
}

func (us UpdateSettings) config() Config {
	cfg := Config{OutOfRange: OutOfRangePolicy(us.OutOfRange)}
	if us.MinPassingGrade != nil {
		cfg.MinPassingGrade = *us.MinPassingGrade
	}
	if us.MinGrade != nil {
		cfg.MinGrade = *us.MinGrade
	}
	if us.MaxGrade != nil {
		cfg.MaxGrade = *us.MaxGrade
	}
	if cfg.OutOfRange == "" {
		cfg.OutOfRange = PolicyClamp
	}
	return cfg
}

// SendReportCard asks for a student's report card to be emailed.
type SendReportCard struct {
	StudentID    string `json:"-"`
	StudentName  string `json:"student_name"`
	AcademicYear int    `json:"academic_year" validate:"required,academicyear"`
	Name         string `json:"name" validate:"required,notblank"`
	Email        string `json:"email" validate:"required,email"`

	// optional attendance, as counted by the school's attendance system
	ClassesAttended int `json:"classes_attended" validate:"min=0,ltefield=ClassesTotal"`
	ClassesTotal    int `json:"classes_total" validate:"min=0"`
}

func (sr *SendReportCard) Validate(validate *validator.Validate) error {
	sr.StudentName = core.CleanString(sr.StudentName)
	sr.Name = core.CleanString(sr.Name)
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}

func (sr SendReportCard) recipient() mail.Address {
	return mail.Address{Name: sr.Name, Address: sr.Email}
}

// QueryFilter narrows a record listing. Empty fields are ignored; set fields are ANDed.
type QueryFilter struct {
	IDs          []string `query:"id"`
	StudentID    string   `query:"student_id"`
	ClassID      string   `query:"class_id"`
	SubjectID    string   `query:"subject_id"`
	AcademicYear int      `query:"academic_year" validate:"omitempty,academicyear"`
	Status       Status   `query:"status" validate:"omitempty,oneof=cursando aprovado reprovado"`
}

func (f *QueryFilter) Validate(validate *validator.Validate) error {
	f.StudentID = core.CleanString(f.StudentID)
	f.ClassID = core.CleanString(f.ClassID)
	f.SubjectID = core.CleanString(f.SubjectID)
	f.Status = Status(core.CleanString(string(f.Status), true /* lower */))
	return validate.Struct(f)
}

// ReportCard is a student's yearly summary across subjects.
type ReportCard struct {
	SchoolID       string   `json:"school_id"`
	StudentID      string   `json:"student_id"`
	AcademicYear   int      `json:"academic_year"`
	Records        []Record `json:"records"`
	Approved       int      `json:"approved"`
	Failed         int      `json:"failed"`
	InProgress     int      `json:"in_progress"`
	OverallAverage *float64 `json:"overall_average"`
	Attendance     *float64 `json:"attendance,omitempty"` // percentage
}

// SetAttendance records the attendance rate; a zero total leaves it unset.
func (rc *ReportCard) SetAttendance(attended, total int) {
	if total <= 0 {
		rc.Attendance = nil
		return
	}
	rate := AttendanceRate(attended, total)
	rc.Attendance = &rate
}

func newReportCard(schoolID, studentID string, year int, recs []Record) ReportCard {
	rc := ReportCard{
		SchoolID:     schoolID,
		StudentID:    studentID,
		AcademicYear: year,
		Records:      recs,
	}
	if rc.Records == nil {
		rc.Records = []Record{}
	}

	finals := make([]float64, 0, len(recs))
	for _, rec := range recs {
		switch rec.Status {
		case StatusApproved:
			rc.Approved++
		case StatusFailed:
			rc.Failed++
		default:
			rc.InProgress++
		}
		if rec.FinalAverage != nil {
			finals = append(finals, *rec.FinalAverage)
		}
	}
	if len(finals) > 0 {
		avg := mean(finals)
		rc.OverallAverage = &avg
	}
	return rc
}
