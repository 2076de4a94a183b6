package extractor

import (
	"github.com/tidwall/gjson"
)

// Lookup returns the value at a JSON path in body, accepting both "$.field"
// and "field" syntax. It reports false when the path does not exist.
func Lookup(body []byte, path string) (string, bool) {
	if len(path) > 0 && path[0] == '$' {
		if len(path) > 1 && path[1] == '.' {
			path = path[2:]
		} else if len(path) == 1 {
			path = "@this"
		}
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
