package basin

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Only these five marks occur in Amazonas municipality names.
var folder = strings.NewReplacer(
	"Á", "A",
	"Ã", "A",
	"É", "E",
	"Í", "I",
	"Ô", "O",
)

// Normalize uppercases a municipality name and folds the five known diacritics.
// Any other mark survives, so names carrying it only match a key written the same way.
func Normalize(name string) string {
	// A Caser is stateful; build one per call so Normalize is safe for concurrent use.
	up := cases.Upper(language.BrazilianPortuguese).String(strings.TrimSpace(name))
	return folder.Replace(up)
}
