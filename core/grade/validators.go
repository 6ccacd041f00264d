package grade

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
)

var (
	academicYearTag  = "academicyear"
	academicYearText = "enter a valid academic year"
	minAcademicYear  = 1900
	maxAcademicYear  = 9999

	gradeBoundsTag  = "gradebounds"
	gradeBoundsText = "min grade must be lower than max grade"

	passingGradeTag  = "passinggrade"
	passingGradeText = "passing grade must be between min and max grade"
)

// InitValidators registers the grade validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(academicYearTag, academicYearValidation)
	core.RegisterCustomTranslation(validate, translator, academicYearTag, academicYearText)

	validate.RegisterStructValidation(settingsStructValidation, UpdateSettings{})
	core.RegisterCustomTranslation(validate, translator, gradeBoundsTag, gradeBoundsText)
	core.RegisterCustomTranslation(validate, translator, passingGradeTag, passingGradeText)
}

func academicYearValidation(fl validator.FieldLevel) bool {
	year := int(fl.Field().Int())
	return year >= minAcademicYear && year <= maxAcademicYear
}

// settingsStructValidation checks that min < max and min <= passing <= max.
func settingsStructValidation(sl validator.StructLevel) {
	us, ok := sl.Current().Interface().(UpdateSettings)
	if !ok || us.MinGrade == nil || us.MaxGrade == nil || us.MinPassingGrade == nil {
		return
	}
	if *us.MinGrade >= *us.MaxGrade {
		sl.ReportError(us.MaxGrade, "max_grade", "MaxGrade", gradeBoundsTag, "")
		return
	}
	if *us.MinPassingGrade < *us.MinGrade || *us.MinPassingGrade > *us.MaxGrade {
		sl.ReportError(us.MinPassingGrade, "min_passing_grade", "MinPassingGrade", passingGradeTag, "")
	}
}
