// Package sqlguard validates user-supplied SQL and query parameters before
// a database reader executes them. Run definitions carry raw queries and
// parameter values from outside the trust boundary, so every database
// reader routes its inputs through this package first.
package sqlguard

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding names a parameter whose value matched a SQL injection pattern.
type Finding struct {
	Param       string // offending parameter name
	Fingerprint string // libinjection fingerprint of the matched pattern
}

// CheckParam scans one parameter value with libinjection. Only string
// values are scanned; numbers, booleans, and nil cannot carry injection
// patterns and always pass. A nil return means the value is clean.
func CheckParam(name string, value any) *Finding {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	if sqli, fingerprint := libinjection.IsSQLi(s); sqli {
		return &Finding{Param: name, Fingerprint: string(fingerprint)}
	}
	return nil
}
