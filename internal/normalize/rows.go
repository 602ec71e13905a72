package normalize

import (
	"regexp"
	"strings"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

var (
	aggregateAnywhere = []string{"итого", "total"}
	aggregatePrefixes = []string{"всего", "в том числе", "в т.ч.", "сумма итог"}

	requisiteKeywords = []string{
		"лицевой счет",
		"расчетный счет",
		"бик",
		"к/с",
		"корр.",
		"корр сч",
		"корреспондентский",
		"уфк",
		"банк россии",
	}
	accountToken = regexp.MustCompile(`(^|\D)(\d{9}|\d{20})(\D|$)`)

	bicPattern      = regexp.MustCompile(`(?i)БИК\s*[:\s]*([0-9]{9})`)
	corrPattern     = regexp.MustCompile(`(?i)(К/С|Корр\.\s*сч[её]т)\s*[:\s]*([0-9]{20})`)
	accountPattern  = regexp.MustCompile(`(?i)(Р/С|Расч[её]тный\s*сч[её]т)\s*[:\s]*([0-9]{20})`)
	treasuryPattern = regexp.MustCompile(`(?i)Лицев[оы]й\s*сч[её]т[^0-9]*([0-9]{20})`)
	innPattern      = regexp.MustCompile(`(?i)(^|[^\p{L}])ИНН\s*[:\s]*([0-9]{10,12})`)
	kppPattern      = regexp.MustCompile(`(?i)(^|[^\p{L}])КПП\s*[:\s]*([0-9]{9})`)
	bankPattern     = regexp.MustCompile(`(ПАО|АО|ООО|ФК|УФК)[^\n]{3,120}`)
)

// IsAggregate reports whether a line item name denotes a subtotal or total row.
func IsAggregate(name string) bool {
	folded := strings.TrimSpace(fold(name))
	if folded == "" {
		return false
	}
	for _, kw := range aggregateAnywhere {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	for _, kw := range aggregatePrefixes {
		if strings.HasPrefix(folded, kw) {
			return true
		}
	}
	return false
}

// IsRequisiteRow reports whether a scraped item row actually carries bank
// details rather than a purchasable object. Such rows show up with bank
// keywords or as zero-total rows holding a BIC or account number.
func IsRequisiteRow(name, price, total string) bool {
	text := fold(strings.Join([]string{name, price, total}, " "))
	for _, kw := range requisiteKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return CleanNumber(total) == 0 && accountToken.MatchString(text)
}

// ExtractRequisites parses bank details out of free text blocks.
// Fields that cannot be found stay empty.
func ExtractRequisites(blocks []string) model.Requisites {
	nonEmpty := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	raw := strings.TrimSpace(strings.ReplaceAll(strings.Join(nonEmpty, "\n"), "\u00a0", " "))

	req := model.Requisites{RawText: raw}
	if raw == "" {
		return req
	}

	req.BIC = submatch(bicPattern, raw, 1)
	req.CorrAccount = submatch(corrPattern, raw, 2)
	req.Account = submatch(accountPattern, raw, 2)
	req.TreasuryAccount = submatch(treasuryPattern, raw, 1)
	req.INN = submatch(innPattern, raw, 2)
	req.KPP = submatch(kppPattern, raw, 2)
	req.BankName = strings.TrimSpace(bankPattern.FindString(raw))
	return req
}

// RequisitesFromMap reads requisites already split by the collaborator.
func RequisitesFromMap(m map[string]string) model.Requisites {
	return model.Requisites{
		BankName:        strings.TrimSpace(m["bank_name"]),
		BIC:             strings.TrimSpace(m["bik"]),
		Account:         strings.TrimSpace(m["account"]),
		CorrAccount:     strings.TrimSpace(m["corr_account"]),
		TreasuryAccount: strings.TrimSpace(m["treasury_account"]),
		INN:             strings.TrimSpace(m["inn"]),
		KPP:             strings.TrimSpace(m["kpp"]),
		RawText:         strings.TrimSpace(m["raw_text"]),
	}
}

func submatch(re *regexp.Regexp, s string, group int) string {
	m := re.FindStringSubmatch(s)
	if m == nil || len(m) <= group {
		return ""
	}
	return m[group]
}
