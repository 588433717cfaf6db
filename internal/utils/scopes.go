package utils

import "strings"

// Scopes normalises a scope value as servers send it: a space separated
// string, a JSON array, or nothing. Non string array entries are skipped.
func Scopes(v any) []string {
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []string:
		return s
	case []any:
		scopes := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				scopes = append(scopes, str)
			}
		}
		return scopes
	default:
		return nil
	}
}
