package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	vatNotePattern = regexp.MustCompile(`(?i)ставка\s+ндс\s*:?\s*(без\s+ндс|\d+([.,]\d+)?\s*%)?|(в\s+т\.\s*ч\.|включая)\s+ндс|без\s+ндс|ндс\s*\d+\s*%`)
	numberPattern  = regexp.MustCompile(`\d+(\.\d+)?`)
	leadingValue   = regexp.MustCompile(`^\s*([-+]?[\d\s\x{00a0}\x{202f}]+(?:[.,]\d+)?)\s*(.*?)\s*$`)

	currencyLabels = []string{"₽", "RUB", "рублей", "рубля", "рубль", "руб.", "руб"}
	unitLabels     = []string{"ДЕТ ДН", "УСЛ ЕД", "УСЛ. ЕД", "ДЕТО-ДН"}
)

// CleanNumber extracts a monetary or quantity value from scraped text.
// Lines are scanned in order and the first positive number wins; when no line
// yields one the first line is scanned once more as is. Unparseable input is 0.
func CleanNumber(s string) float64 {
	if strings.TrimSpace(s) == "" {
		return 0
	}

	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for _, line := range lines {
		if v, ok := firstNumber(stripLabels(line)); ok && v > 0 {
			return v
		}
	}

	v, _ := firstNumber(squash(lines[0]))
	return v
}

// CleanNumberPtr is CleanNumber for optional text; nil is 0.
func CleanNumberPtr(s *string) float64 {
	if s == nil {
		return 0
	}
	return CleanNumber(*s)
}

// SplitUnit splits "value + trailing label" text such as "120 ДЕТ ДН" into the
// number and its label. Currency-only labels collapse to "₽".
func SplitUnit(s string) (float64, string) {
	line := strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
	if line == "" {
		return 0, ""
	}

	m := leadingValue.FindStringSubmatch(line)
	if m == nil {
		return CleanNumber(line), ""
	}

	label := strings.TrimSpace(m[2])
	unit := withoutCurrency(label)
	if unit == "" && label != "" {
		unit = "₽"
	}
	return CleanNumber(m[1]), unit
}

func withoutCurrency(label string) string {
	for _, c := range currencyLabels {
		label = strings.ReplaceAll(label, c, "")
	}
	return strings.Join(strings.Fields(label), " ")
}

func stripLabels(line string) string {
	line = vatNotePattern.ReplaceAllString(line, "")
	for _, c := range currencyLabels {
		line = strings.ReplaceAll(line, c, "")
	}
	for _, u := range unitLabels {
		line = strings.ReplaceAll(line, u, "")
	}
	return squash(line)
}

// squash removes thousands separators and normalises the decimal comma.
func squash(line string) string {
	r := strings.NewReplacer(
		" ", "",
		"\u00a0", "",
		"\u202f", "",
		"\t", "",
		",", ".",
	)
	return r.Replace(line)
}

func firstNumber(line string) (float64, bool) {
	match := numberPattern.FindString(line)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
