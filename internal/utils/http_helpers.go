package utils

import (
	"regexp"
	"strings"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// IsURL returns true if the given string appears to be an absolute URL
func IsURL(str string) bool {
	str = strings.ToLower(str)
	return strings.HasPrefix(str, "http://") || strings.HasPrefix(str, "https://")
}

// IsE164 reports whether the string is an E.164 phone number.
func IsE164(phone string) bool {
	return e164Pattern.MatchString(phone)
}
