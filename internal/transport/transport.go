// Package transport implements the three bindings that carry a tool
// invocation to an OpenPR MCP server: synchronous HTTP request/response,
// a stdio process pipe, and a server-push event stream.
//
// All three adapters share the same contract: a call never returns a Go
// error. Transport failures of any kind (refused connections, timeouts,
// malformed bodies) are folded into an error result so a regression run
// can always continue to the next call.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is the normalized payload of a tool call: a JSON object
// decoded as map[string]any, a bare confirmation string, or an error
// object of the form map[string]any{"error": message}.
type Result = any

// Caller carries a (tool, arguments) invocation over one transport
// binding and returns the normalized result.
type Caller interface {
	// Name is the short transport label used in reporting (HTTP, STDIO, SSE).
	Name() string
	// Call invokes the named tool. It never returns a Go error; failures
	// surface as an error result.
	Call(ctx context.Context, tool string, args map[string]any) Result
}

// Envelope is the JSON-RPC 2.0 wrapper around a tool invocation.
type Envelope struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  CallParams `json:"params"`
}

// CallParams names the tool and carries its argument mapping.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewEnvelope builds a tools/call envelope for the given invocation.
// A nil argument map is sent as an empty object, matching what the
// server expects.
func NewEnvelope(tool string, args map[string]any) Envelope {
	if args == nil {
		args = map[string]any{}
	}
	return Envelope{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  CallParams{Name: tool, Arguments: args},
	}
}

// Marshal serializes the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling call envelope: %w", err)
	}
	return b, nil
}

// Errorf builds an error result from a format string.
func Errorf(format string, args ...any) Result {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// IsErrorResult reports whether r is a transport-level error result.
func IsErrorResult(r Result) bool {
	m, ok := r.(map[string]any)
	if !ok {
		return false
	}
	_, present := m["error"]
	return present
}
