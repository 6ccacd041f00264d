package grade

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type inputKind uint8

const (
	inputNone inputKind = iota
	inputNumber
	inputString
)

// Input is a raw grade entry as typed by a teacher: a number, a string such as
// "7,5", or nothing at all. The zero value is an empty entry.
type Input struct {
	kind inputKind
	num  float64
	str  string
}

func NumberInput(v float64) Input { return Input{kind: inputNumber, num: v} }
func StringInput(s string) Input  { return Input{kind: inputString, str: s} }

// IsZero reports whether nothing was entered (JSON null or a missing field).
func (in Input) IsZero() bool { return in.kind == inputNone }

func (in Input) String() string {
	switch in.kind {
	case inputNumber:
		return strconv.FormatFloat(in.num, 'f', -1, 64)
	case inputString:
		return in.str
	}
	return ""
}

func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*in = Input{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "grade input")
		}
		*in = StringInput(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return errors.New("grade input must be a number, a string or null")
		}
		*in = NumberInput(f)
	}
	return nil
}

func (in Input) MarshalJSON() ([]byte, error) {
	switch in.kind {
	case inputNumber:
		return json.Marshal(in.num)
	case inputString:
		return json.Marshal(in.str)
	}
	return []byte("null"), nil
}

// NormalizeInput turns a raw entry into a usable grade, or nil when there is none.
//
// Strings are trimmed and their first comma is read as the decimal separator.
// Only plain decimal notation is read ("7,5", "-0.5", ".5"): exponents, hex floats,
// Inf and NaN are unusable. Anything unusable yields nil, never zero.
// Out-of-range values are clamped to [MinGrade, MaxGrade] or rejected, per cfg.OutOfRange.
// The result is rounded with Round.
func (cfg Config) NormalizeInput(in Input) *float64 {
	var v float64
	switch in.kind {
	case inputNumber:
		v = in.num
	case inputString:
		parsed, ok := parseGrade(in.str)
		if !ok {
			return nil
		}
		v = parsed
	default:
		return nil
	}
	return cfg.normalize(v)
}

// NormalizeGradeInput normalizes with the default config.
func NormalizeGradeInput(in Input) *float64 {
	return DefaultConfig().NormalizeInput(in)
}

func (cfg Config) normalize(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if v < cfg.MinGrade || v > cfg.MaxGrade {
		if cfg.OutOfRange == PolicyReject {
			return nil
		}
		v = math.Max(cfg.MinGrade, math.Min(cfg.MaxGrade, v))
	}
	v = Round(v)
	return &v
}

// plainDecimal is the only notation typed grades may use: no exponent, hex, inf or nan.
var plainDecimal = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)$`)

func parseGrade(s string) (float64, bool) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	if !plainDecimal.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
