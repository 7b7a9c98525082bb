package harness

import "strings"

// Predicate evaluates a normalized tool response. Responses are plain
// decoded JSON values, so predicates never return errors; anything
// unexpected simply fails the check.
type Predicate func(res any) bool

var confirmationWords = []string{"added", "removed", "deleted", "success"}

// IsOK reports whether res is an object whose code field equals zero.
func IsOK(res any) bool {
	m, isMap := res.(map[string]any)
	if !isMap {
		return false
	}
	return numEquals(m["code"], 0)
}

// HasID reports whether res is a successful object carrying a
// non-empty data.id.
func HasID(res any) bool {
	return IsOK(res) && ID(res) != ""
}

// ID extracts data.id from a response object, or "" when absent.
func ID(res any) string {
	m, isMap := res.(map[string]any)
	if !isMap {
		return ""
	}
	data, isMap := m["data"].(map[string]any)
	if !isMap {
		return ""
	}
	id, _ := data["id"].(string)
	return id
}

// OKOrConfirmation accepts either a successful object or a bare
// confirmation string mentioning an add, remove, delete or success.
func OKOrConfirmation(res any) bool {
	if IsOK(res) {
		return true
	}
	s, isStr := res.(string)
	if !isStr {
		return false
	}
	lower := strings.ToLower(s)
	for _, w := range confirmationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// IsObject reports whether res decoded to a JSON object at all.
// Transport error results do not count even though they are mappings;
// an unreachable server is never a pass.
func IsObject(res any) bool {
	m, isMap := res.(map[string]any)
	return isMap && !isTransportError(m)
}

// isTransportError identifies adapter-made error results. Server-side
// rejections carry a code field next to the error text and are not
// transport errors.
func isTransportError(m map[string]any) bool {
	_, hasErr := m["error"]
	_, hasCode := m["code"]
	return hasErr && !hasCode
}

// HasCode reports whether res is an object carrying a code field,
// regardless of its value.
func HasCode(res any) bool {
	m, isMap := res.(map[string]any)
	if !isMap {
		return false
	}
	_, present := m["code"]
	return present
}

// HasURL reports whether res is an object with a non-empty url field.
func HasURL(res any) bool {
	m, isMap := res.(map[string]any)
	if !isMap {
		return false
	}
	url, _ := m["url"].(string)
	return url != ""
}

// numEquals compares a decoded JSON number against want. Values come
// back as float64 from the wire but as int from in-process fixtures.
func numEquals(v any, want float64) bool {
	switch n := v.(type) {
	case float64:
		return n == want
	case int:
		return float64(n) == want
	case int64:
		return float64(n) == want
	default:
		return false
	}
}
