package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprx/openpr/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(false, false, false, io.Discard)
}

// rpcResponse wraps payload the way the server does: as the text of the
// first content element of a tools/call result.
func rpcResponse(t *testing.T, payload any) []byte {
	t.Helper()
	text, ok := payload.(string)
	if !ok {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		text = string(data)
	}
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestRPCCallerSuccess(t *testing.T) {
	var gotEnvelope Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/mcp/rpc", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEnvelope))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(rpcResponse(t, map[string]any{"code": 0, "data": map[string]any{"id": "p1"}}))
	}))
	defer srv.Close()

	caller := NewRPCCaller(srv.URL, 5*time.Second, testLogger())
	result := caller.Call(context.Background(), "projects.get", map[string]any{"project_id": "p1"})

	assert.Equal(t, "2.0", gotEnvelope.JSONRPC)
	assert.Equal(t, "tools/call", gotEnvelope.Method)
	assert.Equal(t, "projects.get", gotEnvelope.Params.Name)
	assert.Equal(t, "p1", gotEnvelope.Params.Arguments["project_id"])

	m, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), m["code"])
}

func TestRPCCallerPlainStringPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(rpcResponse(t, "label added"))
	}))
	defer srv.Close()

	caller := NewRPCCaller(srv.URL, 5*time.Second, testLogger())
	result := caller.Call(context.Background(), "work_items.add_label", nil)

	assert.Equal(t, "label added", result)
}

func TestRPCCallerConnectionRefused(t *testing.T) {
	// A closed server guarantees a refused connection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	caller := NewRPCCaller(srv.URL, time.Second, testLogger())
	result := caller.Call(context.Background(), "projects.list", nil)

	assert.True(t, IsErrorResult(result))
}

func TestRPCCallerTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	caller := NewRPCCaller(srv.URL, 200*time.Millisecond, testLogger())

	start := time.Now()
	result := caller.Call(context.Background(), "projects.list", nil)

	assert.True(t, IsErrorResult(result))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRPCCallerMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	caller := NewRPCCaller(srv.URL, time.Second, testLogger())
	result := caller.Call(context.Background(), "projects.list", nil)

	assert.True(t, IsErrorResult(result))
}
