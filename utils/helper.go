package utils

import (
	"regexp"
	"strings"

	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IT"

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// NormalizePhone formats a phone number in E.164 for the platform's market.
// Unparseable input is returned trimmed rather than rejected; phone numbers
// are contact data, not identity.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, CountryCode)
	if err != nil {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}
	return *ptr
}
