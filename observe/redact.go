package observe

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces suppressed values in log output.
const RedactedPlaceholder = "[REDACTED]"

// sensitiveSegments are key segments that mark a field as carrying secret
// material. Matching is on the last dotted segment of the key, so
// "secret.name" is logged while "secret.value" and "password" are not.
var sensitiveSegments = []string{
	"secret",
	"secrets",
	"password",
	"passwd",
	"token",
	"api_key",
	"apikey",
	"credential",
	"credentials",
	"private_key",
	"privatekey",
	"value",
	"input",
	"inputs",
}

// Message redaction patterns. "secret:" doubles as the error prefix of the
// secret package, so after a colon a secret is only treated as a value when it
// is quoted. Assignments ("secret=...") and the other words redact bare tokens
// after either separator.
var (
	assignValuePattern = regexp.MustCompile(
		`(?i)\b((?:(?:api[_-]?)?key|secret|password|passwd|token|credential)s?)(\s*=\s*)("[^"]*"|'[^']*'|[^\s,;]+)`,
	)
	colonValuePattern = regexp.MustCompile(
		`(?i)\b((?:(?:api[_-]?)?key|password|passwd|token|credential)s?)(\s*:\s*)("[^"]*"|'[^']*'|[^\s,;]+)`,
	)
	quotedSecretPattern = regexp.MustCompile(
		`(?i)\b(secrets?)(\s*:\s*)("[^"]*"|'[^']*')`,
	)
)

// IsSensitiveKey reports whether a field with this key must be redacted.
func IsSensitiveKey(key string) bool {
	segment := key
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		segment = key[i+1:]
	}
	segment = strings.ToLower(strings.ReplaceAll(segment, "-", "_"))
	for _, s := range sensitiveSegments {
		if segment == s {
			return true
		}
	}
	return false
}

// RedactField returns the value to emit for a field.
func RedactField(key string, value any) any {
	if IsSensitiveKey(key) {
		return RedactedPlaceholder
	}
	return value
}

// RedactMessage suppresses the value portion of "secret=...", "password: ..."
// and similar fragments in a log message. The words themselves are kept so the
// message stays readable, and error prefixes such as "secret: cloud backend"
// pass through untouched.
func RedactMessage(msg string) string {
	if msg == "" {
		return msg
	}
	repl := "${1}${2}" + RedactedPlaceholder
	for _, p := range []*regexp.Regexp{assignValuePattern, colonValuePattern, quotedSecretPattern} {
		msg = p.ReplaceAllString(msg, repl)
	}
	return msg
}
