package observability

import (
	"strings"
	"unicode"
)

const (
	maxIDRunes    = 64
	maxFieldRunes = 128
)

// clean drops control characters and truncates to max runes.
func clean(value string, max int) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if runes := []rune(value); len(runes) > max {
		return string(runes[:max])
	}
	return value
}

// SanitizeUserID makes a user id safe to log.
func SanitizeUserID(uid string) string {
	return clean(uid, maxIDRunes)
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	email = clean(strings.TrimSpace(email), maxFieldRunes)
	local, domain, ok := strings.Cut(email, "@")
	switch {
	case email == "":
		return ""
	case !ok || local == "":
		return "***"
	}
	return string([]rune(local)[:1]) + "***@" + domain
}

// SanitizeKey makes a storage key safe to log.
func SanitizeKey(key string) string {
	return clean(key, maxFieldRunes)
}
