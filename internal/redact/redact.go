// Package redact removes credentials and other sensitive fragments from
// strings before they are logged or stored as user visible error text.
// Provider errors often echo request URLs, keys or local paths; everything
// that crosses a trust boundary goes through String or Error first.
package redact

import "regexp"

// Placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// rule replaces every match of pattern with replacement, which may refer
// to capture groups.
type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules are applied in order; URL credentials go first so later rules do
// not split them.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)\b(postgres(?:ql)?|redis|rediss|mysql|mongodb|amqps?)://[^@\s/]+@`),
		"$1://" + RedactedCredentialPlaceholder + "@",
	},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-.~+/=]{8,}`), "Bearer " + RedactedKeyPlaceholder},
	{
		regexp.MustCompile(`(?i)\b(api[_-]?key|key|token|secret|password|passwd)(\s*[=:]\s*['"]?)[^'"&\s,]{4,}`),
		"$1$2" + RedactionPlaceholder,
	},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`(^|[\s"'(=])(?:/[\w.-]+){2,}`), "$1" + RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(?:\\[^\\\s]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(?:goroutine \d+ \[|panic: )[\s\S]*`), "[STACK_TRACE_REDACTED]"},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
