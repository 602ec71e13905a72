package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var bareIDPattern = regexp.MustCompile(`^\d{10,25}$`)

// ParseID accepts a bare registry number or a contract card URL carrying a
// reestrNumber query parameter.
func ParseID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if bareIDPattern.MatchString(input) {
		return input, nil
	}

	if u, err := url.Parse(input); err == nil && u.Host != "" {
		if id := u.Query().Get("reestrNumber"); bareIDPattern.MatchString(id) {
			return id, nil
		}
	}
	if m := reestrNumberPattern.FindStringSubmatch(input); m != nil && bareIDPattern.MatchString(m[1]) {
		return m[1], nil
	}
	return "", ErrMissingID
}

// ContractURL is the public card of a contract.
func ContractURL(id string) string {
	return "https://zakupki.gov.ru/epz/contract/contractCard/common-info.html?reestrNumber=" + id
}
