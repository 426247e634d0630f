package logging

import "regexp"

// Patterns are applied in order, most specific first.
var secretPatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`\bsk-ant-[a-zA-Z0-9\-_]+`), "sk-ant-****"},
	{regexp.MustCompile(`\bsk-[a-zA-Z0-9\-_]{10,}`), "sk-****"},
	{regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{20,}`), "AIza****"},
	{regexp.MustCompile(`ya29\.[0-9A-Za-z\-_.]+`), "ya29.****"},
	{regexp.MustCompile(`1//[0-9A-Za-z\-_]{20,}`), "1//****"},
	{regexp.MustCompile(`(?i)(bearer\s+)[0-9A-Za-z\-_.~+/]+=*`), "${1}****"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[^-]*-----END [A-Z ]*PRIVATE KEY-----`), "****PRIVATE KEY****"},
	{regexp.MustCompile(`([?&](?:key|access_token)=)[^&\s"]+`), "${1}****"},
}

// Sanitize masks API keys, OAuth tokens and private keys in s.
func Sanitize(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.mask)
	}
	return s
}

// SanitizeError returns err's message with secrets masked, or "" for nil.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}
