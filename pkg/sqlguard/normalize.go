package sqlguard

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates the query contains more than one SQL
// statement. Readers wrap user queries in subselects, so a second
// statement can never be legitimate.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// ValidateAndNormalize strips a trailing semicolon from the query and
// rejects anything that still contains a semicolon outside string
// literals.
func ValidateAndNormalize(sqlQuery string) (string, error) {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return "", nil
	}

	normalized := trimFinalSemicolon(sqlQuery)
	if bareSemicolon(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// bareSemicolon reports whether the query holds a semicolon outside any
// string literal. The scan tracks quote context; both backslash escapes
// (\') and SQL doubled quotes ('') are handled, a doubled quote exiting
// and immediately re-entering the literal, which keeps the scan correct.
func bareSemicolon(sqlQuery string) bool {
	type quoteContext int
	const (
		plain quoteContext = iota
		inSingle
		inDouble
	)

	ctx := plain
	var prev rune
	for _, c := range sqlQuery {
		switch {
		case ctx == inSingle:
			if c == '\'' && prev != '\\' {
				ctx = plain
			}
		case ctx == inDouble:
			if c == '"' && prev != '\\' {
				ctx = plain
			}
		case c == ';':
			return true
		case c == '\'':
			ctx = inSingle
		case c == '"':
			ctx = inDouble
		}
		prev = c
	}
	return false
}

// trimFinalSemicolon removes one trailing semicolon along with the
// whitespace around it.
func trimFinalSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(sqlQuery[:len(sqlQuery)-1], " \t\n\r")
	}
	return sqlQuery
}
