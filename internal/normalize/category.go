package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

type categoryRule struct {
	pattern  *regexp.Regexp
	category model.Category
}

// categoryRules are evaluated in order; the first match wins.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`овз|ограничен`), model.CategoryDisability},
	{regexp.MustCompile(`(^|\D)1\s*[-–— ]\s*4(\D|$)|начальн`), model.CategoryPrimary},
	{regexp.MustCompile(`(^|\D)5\s*[-–— ]\s*(9|11)(\D|$)|старш`), model.CategorySecondary},
	{regexp.MustCompile(`гпд|продлен`), model.CategoryAfterCare},
	{regexp.MustCompile(`завтрак`), model.CategoryBreakfast},
	{regexp.MustCompile(`обед`), model.CategoryLunch},
}

// fold lower-cases text for keyword matching and maps ё to е.
// A Caser is stateful, so one is built per call.
func fold(s string) string {
	return strings.ReplaceAll(cases.Fold().String(s), "ё", "е")
}

// Classify assigns a line item to the closed category taxonomy by name.
func Classify(name string) model.Category {
	folded := fold(name)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(folded) {
			return rule.category
		}
	}
	return model.CategoryOther
}
