package utils

import "github.com/tidwall/gjson"

// NoErrorFieldInJSON reports whether a JSON-RPC response, or every member
// of a batch response, comes without an error object.
func NoErrorFieldInJSON(jsonStr string) bool {
	parsed := gjson.Parse(jsonStr)

	if parsed.IsArray() {
		for _, member := range parsed.Array() {
			if member.Get("error").Exists() {
				return false
			}
		}
		return true
	}

	return !parsed.Get("error").Exists()
}
