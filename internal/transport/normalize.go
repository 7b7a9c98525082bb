package transport

import "encoding/json"

// Normalize unwraps a JSON-RPC response envelope into the
// developer-facing payload. When the envelope carries
// result.content[0].text, the text is parsed as JSON; if it is not
// valid JSON the raw text is returned unchanged. Any other shape is
// returned as-is.
func Normalize(raw Result) Result {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	result, ok := m["result"].(map[string]any)
	if !ok {
		return m
	}
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		return m
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return m
	}
	text, ok := first["text"].(string)
	if !ok {
		return m
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text
	}
	return parsed
}

// decodeAndNormalize parses a raw JSON document and normalizes it.
// Used by adapters once they have a response body or stream payload.
func decodeAndNormalize(data []byte) (Result, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return Normalize(raw), nil
}
