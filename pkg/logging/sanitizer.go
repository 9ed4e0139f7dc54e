package logging

import "regexp"

// RedactedText replaces sensitive values in log output.
const RedactedText = "[REDACTED]"

// redaction pairs a pattern with its replacement template.
type redaction struct {
	re   *regexp.Regexp
	repl string
}

// redactions covers the secrets this engine can leak into logs: DSN
// passwords, api_key query pairs, bare Groq/OpenAI-style keys that providers
// echo back in 401 bodies, and user:pass@ credentials in URL-form connection
// strings.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`), "${1}=" + RedactedText},
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`), "${1}=" + RedactedText},
	{regexp.MustCompile(`\b(gsk_[A-Za-z0-9]{8,}|sk-[A-Za-z0-9_-]{8,})\b`), RedactedText},
	{regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`), "://" + RedactedText + "@" + RedactedText},
}

func redactAll(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// SanitizeConnectionString redacts credentials from a database connection
// string so startup logs can show the target without the password.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redactAll(connStr)
}

// SanitizeError redacts secrets from an error message before logging.
// Database errors can embed the DSN, and AI endpoint failures can echo the
// API key from the request that produced them.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redactAll(err.Error())
}
