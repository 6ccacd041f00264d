package grade

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

// OutOfRangePolicy decides what the normalizer does with a grade outside [MinGrade, MaxGrade].
type OutOfRangePolicy string

const (
	PolicyClamp  OutOfRangePolicy = "clamp"  // pull the value to the nearest bound
	PolicyReject OutOfRangePolicy = "reject" // treat the value as unusable
)

var (
	ErrInvalidBounds       = errors.New("min grade must be lower than max grade")
	ErrThresholdOutOfRange = errors.New("passing grade must be between min and max grade")
	ErrUnknownPolicy       = errors.New("unknown out of range policy")
)

// Config holds the grading parameters of a school.
type Config struct {
	MinPassingGrade float64          `json:"min_passing_grade"`
	MinGrade        float64          `json:"min_grade"`
	MaxGrade        float64          `json:"max_grade"`
	OutOfRange      OutOfRangePolicy `json:"out_of_range"`
}

func DefaultConfig() Config {
	return Config{
		MinPassingGrade: 7.0,
		MinGrade:        0.0,
		MaxGrade:        10.0,
		OutOfRange:      PolicyClamp,
	}
}

// NewConfig builds the process-wide defaults from the application config.
func NewConfig(gc core.GradesConfig) (Config, error) {
	cfg := Config{
		MinPassingGrade: gc.MinPassingGrade,
		MinGrade:        gc.MinGrade,
		MaxGrade:        gc.MaxGrade,
		OutOfRange:      OutOfRangePolicy(gc.OutOfRangePolicy),
	}
	if cfg.OutOfRange == "" {
		cfg.OutOfRange = PolicyClamp
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "grades config")
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	switch {
	case !(cfg.MinGrade < cfg.MaxGrade):
		return errors.Wrapf(ErrInvalidBounds, "%g >= %g", cfg.MinGrade, cfg.MaxGrade)
	case cfg.MinPassingGrade < cfg.MinGrade || cfg.MinPassingGrade > cfg.MaxGrade:
		return errors.Wrapf(ErrThresholdOutOfRange, "%g not in [%g, %g]", cfg.MinPassingGrade, cfg.MinGrade, cfg.MaxGrade)
	case !cfg.OutOfRange.Valid():
		return errors.Wrapf(ErrUnknownPolicy, "%q", cfg.OutOfRange)
	}
	return nil
}

func (p OutOfRangePolicy) Valid() bool {
	return p == PolicyClamp || p == PolicyReject
}

// EvaluateStatus is EvaluateStatus with the school's passing grade.
func (cfg Config) EvaluateStatus(avg *float64) Status {
	return EvaluateStatus(avg, cfg.MinPassingGrade)
}

func (cfg Config) rangeText() string {
	return fmt.Sprintf("enter a grade between %g and %g", cfg.MinGrade, cfg.MaxGrade)
}
