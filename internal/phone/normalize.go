// Package phone normalizes resident phone numbers.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	defaultRegion = "UA"
	// countryPrefix is prepended when the number cannot be parsed as Ukrainian.
	countryPrefix = "+38"
)

// Normalize turns a 10-digit local number such as 0671234567 into
// +380671234567. Input is expected to be pre-validated as 10 digits.
func Normalize(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return countryPrefix + trimmed
	}
	formatted := phonenumbers.Format(number, phonenumbers.E164)
	if !strings.HasPrefix(formatted, countryPrefix) {
		return countryPrefix + trimmed
	}
	return formatted
}
