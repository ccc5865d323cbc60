package classifier

import "regexp"

// Patterns are applied in order, specific before generic
var redactions = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret|password|passwd)\b(\s*[=:]\s*)\S+`), "${1}${2}<SECRET>"},
	{regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._~+/=-]+`), "Bearer <SECRET>"},
	{regexp.MustCompile(`\bhttps?://[a-zA-Z0-9.-]+[a-zA-Z0-9/._?=&%-]*`), "<URL>"},
	{regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`), "<EMAIL>"},
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "<UUID>"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "<IP>"},
	{regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`), "<HEX>"},
}

// Redact masks credentials, URLs, e-mail addresses, UUIDs, IPv4 addresses
// and long hex tokens so they are never sent to a remote provider. Words
// that carry risk (component names, verbs) are left alone.
func Redact(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}
