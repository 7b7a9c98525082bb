package mockserver

import (
	"encoding/json"
	"fmt"
	"sort"
)

const protocolVersion = "2024-11-05"

// HandleMessage processes one decoded JSON-RPC request and returns the
// response object, or nil for notifications that get no reply. All
// three bindings funnel through here.
func (s *Server) HandleMessage(msg map[string]any) map[string]any {
	method, _ := msg["method"].(string)
	id := msg["id"]

	switch method {
	case "initialize":
		return rpcResult(id, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "openpr-mock", "version": "0.1.0"},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return rpcResult(id, map[string]any{})
	case "tools/list":
		return rpcResult(id, map[string]any{"tools": s.toolDescriptors()})
	case "tools/call":
		return s.handleToolCall(id, msg)
	default:
		return rpcError(id, -32601, fmt.Sprintf("method not found: %s", method))
	}
}

func (s *Server) handleToolCall(id any, msg map[string]any) map[string]any {
	params, _ := msg["params"].(map[string]any)
	name, _ := params["name"].(string)
	if name == "" {
		return rpcError(id, -32602, "missing tool name")
	}
	args, _ := params["arguments"].(map[string]any)

	payload := s.Dispatch(name, args)
	s.log.Debug("tool %s dispatched", name)

	text, isText := payload.(string)
	if !isText {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return rpcError(id, -32603, "payload encoding failed")
		}
		text = string(encoded)
	}
	return rpcResult(id, map[string]any{
		"content": []any{map[string]any{"type": "text", "text": text}},
	})
}

func (s *Server) toolDescriptors() []any {
	names := s.ToolNames()
	sort.Strings(names)
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{
			"name":        name,
			"description": "OpenPR " + name,
			"inputSchema": map[string]any{"type": "object"},
		})
	}
	return out
}

func rpcResult(id, result any) map[string]any {
	return map[string]any{"jsonrpc": "2.0", "id": id, "result": result}
}

func rpcError(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	}
}
