package grade

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/trezcool/escola/core"
)

// Concept is a qualitative assessment on the fixed concept scale.
// The zero value is not a valid concept.
type Concept uint8

const (
	ConceptExcelente Concept = iota + 1
	ConceptOtimo
	ConceptMuitoBom
	ConceptBom
	ConceptRegular
	ConceptInsuficiente
)

// ConceptScale is one entry of the concept scale.
type ConceptScale struct {
	Concept Concept `json:"-"`
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Grade   float64 `json:"grade"`
}

var (
	ErrUnknownConcept = errors.New("unknown concept")

	conceptScale = [...]ConceptScale{
		{ConceptExcelente, "EXCELENTE", "Excelente", 10},
		{ConceptOtimo, "OTIMO", "Ótimo", 9},
		{ConceptMuitoBom, "MUITO_BOM", "Muito Bom", 8},
		{ConceptBom, "BOM", "Bom", 7},
		{ConceptRegular, "REGULAR", "Regular", 5},
		{ConceptInsuficiente, "INSUFICIENTE", "Insuficiente", 3},
	}

	conceptsByName = func() map[string]Concept {
		m := make(map[string]Concept, 2*len(conceptScale))
		for _, s := range conceptScale {
			m[conceptName(s.Key)] = s.Concept
			m[conceptName(s.Label)] = s.Concept
		}
		return m
	}()

	suggestionCutoff = 0.6
	maxSuggestions   = 3
)

// Concepts returns the concept scale, best concept first.
func Concepts() []ConceptScale {
	scale := make([]ConceptScale, len(conceptScale))
	copy(scale[:], conceptScale[:])
	return scale
}

func (c Concept) Valid() bool {
	return c >= ConceptExcelente && c <= ConceptInsuficiente
}

func isKnownConcept(c Concept) vala.Checker {
	return func() (bool, string) {
		return c.Valid(), fmt.Sprintf("grade: unknown concept %d", uint8(c))
	}
}

func (c Concept) scale() ConceptScale {
	vala.BeginValidation().Validate(isKnownConcept(c)).CheckAndPanic()
	return conceptScale[c-1]
}

// Grade returns the numeric grade of the concept. It panics if c is not one of the declared concepts.
func (c Concept) Grade() float64 { return c.scale().Grade }

// Label returns the display label, e.g. "Muito Bom".
func (c Concept) Label() string { return c.scale().Label }

// String returns the concept key, e.g. "MUITO_BOM".
func (c Concept) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Concept(%d)", uint8(c))
	}
	return conceptScale[c-1].Key
}

func (c Concept) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.Wrapf(ErrUnknownConcept, "marshal %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Concept) UnmarshalText(text []byte) error {
	parsed, err := ParseConcept(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MapConceptToGrade returns the numeric grade of a concept.
func MapConceptToGrade(c Concept) float64 {
	return c.Grade()
}

// ParseConcept accepts either a key ("MUITO_BOM") or a label ("Muito Bom"),
// ignoring case, accents and separators.
func ParseConcept(label string) (Concept, error) {
	name := conceptName(label)
	if c, ok := conceptsByName[name]; ok {
		return c, nil
	}

	msg := fmt.Sprintf("unknown concept %q", strings.TrimSpace(label))
	if suggestions := suggestConcepts(name); len(suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean %s?", strings.Join(suggestions, " or "))
	}
	return 0, core.NewValidationError(
		errors.Wrap(ErrUnknownConcept, label),
		core.FieldError{Field: "concept", Error: msg},
	)
}

func suggestConcepts(name string) []string {
	if name == "" {
		return nil
	}

	type match struct {
		key   string
		ratio float64
	}
	var matches []match
	for _, s := range conceptScale {
		ratio := similarity(name, conceptName(s.Key))
		if r := similarity(name, conceptName(s.Label)); r > ratio {
			ratio = r
		}
		if ratio >= suggestionCutoff {
			matches = append(matches, match{s.Key, ratio})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ratio > matches[j].ratio })

	var keys []string
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		keys = append(keys, matches[i].key)
	}
	return keys
}

func similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// conceptName folds a key or label to its lookup form: "Ótimo" -> "OTIMO", "muito bom" -> "MUITO_BOM".
func conceptName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	fields := strings.FieldsFunc(strings.ToUpper(folded), func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	return strings.Join(fields, "_")
}
