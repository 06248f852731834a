package log

import (
	"regexp"
	"strings"
)

var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"token", "secret", "credential",
	"auth", "authorization",
	"dsn",
}

// userinfoPattern matches the "user:pass@" part of a URL-like string.
var userinfoPattern = regexp.MustCompile(`(://[^:/@\s]+):([^@/\s]+)@`)

// SanitizeField masks the value when the key names a secret, and strips passwords from
// proxy URLs under any key.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return sanitizeToken(value)
		}
	}

	return SanitizeMessage(value)
}

// SanitizeMessage replaces the password of every embedded URL with "****".
func SanitizeMessage(value string) string {
	if !strings.Contains(value, "@") {
		return value
	}
	return userinfoPattern.ReplaceAllString(value, "$1:****@")
}

// sanitizeToken masks secrets showing only the first and last 4 characters.
func sanitizeToken(value string) string {
	if len(value) <= 8 {
		if len(value) <= 2 {
			return strings.Repeat("*", len(value))
		}
		return string(value[0]) + strings.Repeat("*", len(value)-2) + string(value[len(value)-1])
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
