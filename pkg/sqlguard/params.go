package sqlguard

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Named parameters in query templates use {{name}} placeholders. Names
// follow identifier rules: a letter or underscore followed by word
// characters.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// Positional placeholders in already-substituted queries.
var positionalRegex = regexp.MustCompile(`\$(\d+)`)

// Substitute replaces every {{name}} placeholder in the query with a
// positional parameter ($1, $2, ...) and returns the values in positional
// order. A name used several times binds to one position. Every
// placeholder must have a value in params, and string values are scanned
// for injection patterns before substitution; supplied values without a
// placeholder are ignored.
func Substitute(sqlQuery string, params map[string]any) (string, []any, error) {
	matches := parameterRegex.FindAllStringSubmatch(sqlQuery, -1)
	if len(matches) == 0 {
		return sqlQuery, nil, nil
	}

	var missing []string
	seen := make(map[string]bool)
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", nil, fmt.Errorf("query uses undefined parameters: %s", strings.Join(missing, ", "))
	}

	for name := range seen {
		if finding := CheckParam(name, params[name]); finding != nil {
			return "", nil, fmt.Errorf("potential SQL injection detected in parameter %q (fingerprint %s)",
				name, finding.Fingerprint)
		}
	}

	var orderedValues []any
	positions := make(map[string]int)
	result := parameterRegex.ReplaceAllStringFunc(sqlQuery, func(match string) string {
		name := parameterRegex.FindStringSubmatch(match)[1]
		pos, exists := positions[name]
		if !exists {
			orderedValues = append(orderedValues, params[name])
			pos = len(orderedValues)
			positions[name] = pos
		}
		return fmt.Sprintf("$%d", pos)
	})

	return result, orderedValues, nil
}

// MSSQLPlaceholders rewrites PostgreSQL-style positional placeholders
// ($1, $2, ...) into SQL Server named parameters (@p1, @p2, ...).
func MSSQLPlaceholders(sqlQuery string) string {
	return positionalRegex.ReplaceAllStringFunc(sqlQuery, func(match string) string {
		num, err := strconv.Atoi(match[1:])
		if err != nil {
			return match
		}
		return fmt.Sprintf("@p%d", num)
	})
}
