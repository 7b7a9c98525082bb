package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want any
	}{
		{
			name: "content text with valid JSON yields parsed object",
			raw: map[string]any{
				"jsonrpc": "2.0",
				"id":      float64(1),
				"result": map[string]any{
					"content": []any{
						map[string]any{"type": "text", "text": `{"code":0,"data":{"id":"abc"}}`},
					},
				},
			},
			want: map[string]any{
				"code": float64(0),
				"data": map[string]any{"id": "abc"},
			},
		},
		{
			name: "content text with invalid JSON yields raw text",
			raw: map[string]any{
				"result": map[string]any{
					"content": []any{
						map[string]any{"type": "text", "text": "label added"},
					},
				},
			},
			want: "label added",
		},
		{
			name: "mapping without result is returned unchanged",
			raw:  map[string]any{"error": "connection refused"},
			want: map[string]any{"error": "connection refused"},
		},
		{
			name: "result without content is returned unchanged",
			raw:  map[string]any{"result": map[string]any{"ok": true}},
			want: map[string]any{"result": map[string]any{"ok": true}},
		},
		{
			name: "empty content array is returned unchanged",
			raw:  map[string]any{"result": map[string]any{"content": []any{}}},
			want: map[string]any{"result": map[string]any{"content": []any{}}},
		},
		{
			name: "first content element without text is returned unchanged",
			raw: map[string]any{
				"result": map[string]any{
					"content": []any{map[string]any{"type": "image"}},
				},
			},
			want: map[string]any{
				"result": map[string]any{
					"content": []any{map[string]any{"type": "image"}},
				},
			},
		},
		{
			name: "non-mapping input is returned unchanged",
			raw:  "plain string",
			want: "plain string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestEnvelopeShape(t *testing.T) {
	env := NewEnvelope("projects.list", nil)
	data, err := env.Marshal()
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"projects.list","arguments":{}}}`,
		string(data))
}

func TestErrorResult(t *testing.T) {
	r := Errorf("connection refused: %s", "localhost:8090")
	assert.True(t, IsErrorResult(r))
	assert.False(t, IsErrorResult(map[string]any{"code": float64(0)}))
	assert.False(t, IsErrorResult("deleted successfully"))
	assert.False(t, IsErrorResult(nil))
}
