package reader

import "fmt"

// Option accessors for the loosely typed options map of a reader spec.
// Specs arrive over JSON or YAML, so numbers can show up as float64 or
// int; a present option of the wrong type is an error, never a silent
// fallback.

// RequiredString returns the named option, failing when it is absent,
// empty, or not a string.
func RequiredString(options map[string]any, key string) (string, error) {
	s, ok := options[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// StringOption returns the named option, or fallback when absent.
func StringOption(options map[string]any, key, fallback string) (string, error) {
	raw, ok := options[key]
	if !ok {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

// IntOption returns the named option, or fallback when absent.
func IntOption(options map[string]any, key string, fallback int) (int, error) {
	raw, ok := options[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// BoolOption returns the named option, or fallback when absent.
func BoolOption(options map[string]any, key string, fallback bool) (bool, error) {
	raw, ok := options[key]
	if !ok {
		return fallback, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

// QuerySource is the table-or-query half of a database reader's options.
type QuerySource struct {
	Table  string
	Query  string
	Params map[string]any
	Limit  int
}

// QuerySourceFromMap reads the query source shared by the database
// readers: exactly one of table and query, optional named params for the
// query, and an optional non-negative row limit.
func QuerySourceFromMap(options map[string]any) (QuerySource, error) {
	var src QuerySource
	var err error

	if src.Table, err = StringOption(options, "table", ""); err != nil {
		return QuerySource{}, err
	}
	if src.Query, err = StringOption(options, "query", ""); err != nil {
		return QuerySource{}, err
	}
	switch {
	case src.Table == "" && src.Query == "":
		return QuerySource{}, fmt.Errorf("either table or query is required")
	case src.Table != "" && src.Query != "":
		return QuerySource{}, fmt.Errorf("table and query are mutually exclusive")
	}

	if params, ok := options["params"]; ok {
		m, ok := params.(map[string]any)
		if !ok {
			return QuerySource{}, fmt.Errorf("params must be an object")
		}
		src.Params = m
	}

	if src.Limit, err = IntOption(options, "limit", 0); err != nil {
		return QuerySource{}, err
	}
	if src.Limit < 0 {
		return QuerySource{}, fmt.Errorf("limit must not be negative")
	}
	return src, nil
}
