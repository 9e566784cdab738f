package audit

import "regexp"

// redactions run in order; specific token shapes come before the
// generic key/value patterns.
var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), "[JWT_REDACTED]"},
	{regexp.MustCompile(`(?i)(postgres(?:ql)?|mysql|mongodb(?:\+srv)?)://([^:]+):([^@]+)@`), "$1://$2:[PASSWORD_REDACTED]@"},
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_.-]{20,}`), "$1[TOKEN_REDACTED]"},
	{regexp.MustCompile(`(?i)(authorization['":\s]+)[A-Za-z0-9_.-]{20,}`), "$1[AUTH_REDACTED]"},
	{regexp.MustCompile(`(?i)(api[_-]?key['":\s]+)[A-Za-z0-9_-]{16,}`), "$1[API_KEY_REDACTED]"},
	{regexp.MustCompile(`(?i)(secret['":\s]+)[A-Za-z0-9_-]{16,}`), "$1[SECRET_REDACTED]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`), "[API_KEY_REDACTED]"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "[AWS_KEY_REDACTED]"},
	{regexp.MustCompile(`(?i)("?password"?\s*[:=]\s*"?)([^"'\s]{6,})("?)`), "$1[PASSWORD_REDACTED]$3"},
}

// Redact strips credential-shaped substrings before a message is
// logged or retained.
func Redact(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}
