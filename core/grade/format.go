package grade

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const absentMark = "-"

func init() {
	for _, tag := range []language.Tag{language.Portuguese, language.BrazilianPortuguese} {
		_ = message.SetString(tag, string(StatusInProgress), "Cursando")
		_ = message.SetString(tag, string(StatusApproved), "Aprovado")
		_ = message.SetString(tag, string(StatusFailed), "Reprovado")
	}
	_ = message.SetString(language.English, string(StatusInProgress), "In progress")
	_ = message.SetString(language.English, string(StatusApproved), "Approved")
	_ = message.SetString(language.English, string(StatusFailed), "Failed")
}

// Formatter renders grades for humans in a given locale ("7,50" in pt-BR).
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	return Formatter{tag: tag, printer: message.NewPrinter(tag)}
}

func (f Formatter) Lang() string { return f.tag.String() }

// Mark formats a grade with two decimals, or "-" when absent.
func (f Formatter) Mark(v *float64) string {
	if v == nil {
		return absentMark
	}
	return f.printer.Sprintf("%.2f", *v)
}

func (f Formatter) Percent(v float64) string {
	return f.printer.Sprintf("%.2f%%", v)
}

func (f Formatter) Status(s Status) string {
	return f.printer.Sprintf(string(s))
}
