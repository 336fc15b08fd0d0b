package logging

import "regexp"

const (
	// MaxQueryLogLength caps how much of a SQL statement reaches the log.
	MaxQueryLogLength = 100

	// RedactedText replaces anything secret-shaped.
	RedactedText = "[REDACTED]"
)

// The shapes secrets take in reader configs and in the errors that echo
// them back: key=value pairs in DSNs, credentials inside URLs, bearer
// tokens in SDK responses.
var (
	passwordPattern    = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	apiKeyPattern      = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)
	bearerPattern      = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)
	credentialsPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// redactPairs scrubs password and API key assignments.
func redactPairs(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	return apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
}

// redactURLs scrubs user:pass@host credentials embedded in URLs.
func redactURLs(s string) string {
	return credentialsPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeConnectionString removes credentials from a connection string or
// URL before it is logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redactURLs(redactPairs(connStr))
}

// SanitizeError scrubs an error message of credentials, tokens, and keys.
// Reader errors wrap driver errors that may echo the DSN back, so every
// reader error goes through here before logging.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := bearerPattern.ReplaceAllString(err.Error(), "Bearer "+RedactedText)
	return redactURLs(redactPairs(s))
}

// SanitizeQuery truncates a statement for logging and scrubs anything
// secret-shaped left in the kept prefix.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	return redactPairs(TruncateString(query, MaxQueryLogLength))
}

// TruncateString shortens s to maxLen bytes of the original plus an
// ellipsis marker.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
