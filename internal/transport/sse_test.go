package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprx/openpr/internal/logging"
)

func shortStreamTimeouts() StreamTimeouts {
	return StreamTimeouts{
		Call:       2 * time.Second,
		Endpoint:   time.Second,
		FirstEvent: 500 * time.Millisecond,
		Message:    2 * time.Second,
	}
}

// messageEnvelope renders a complete JSON-RPC response whose content
// text is the given payload document.
func messageEnvelope(t *testing.T, payload string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"content": []map[string]any{{"type": "text", "text": payload}},
		},
	})
	require.NoError(t, err)
	return string(data)
}

func writeSSE(t *testing.T, w http.ResponseWriter, event, data string) {
	t.Helper()
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func TestStreamCallerDiscoversEndpoint(t *testing.T) {
	posted := make(chan Envelope, 1)
	messages := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, "endpoint", "/custom")
		select {
		case msg := <-messages:
			writeSSE(t, w, "message", msg)
		case <-r.Context().Done():
			return
		}
		<-r.Context().Done()
	})
	mux.HandleFunc("/custom", func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		posted <- env
		messages <- messageEnvelope(t, `{"code":0}`)
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	caller := NewStreamCaller(srv.URL, shortStreamTimeouts(), testLogger())
	result := caller.Call(context.Background(), "projects.list", nil)

	env := <-posted
	assert.Equal(t, "projects.list", env.Params.Name)
	assert.Equal(t, map[string]any{"code": float64(0)}, result)
}

func TestStreamCallerIgnoresOtherEvents(t *testing.T) {
	messages := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "endpoint", "/custom")
		writeSSE(t, w, "keepalive", "ping")
		select {
		case msg := <-messages:
			writeSSE(t, w, "message", msg)
		case <-r.Context().Done():
			return
		}
		<-r.Context().Done()
	})
	mux.HandleFunc("/custom", func(w http.ResponseWriter, r *http.Request) {
		messages <- messageEnvelope(t, `{"code":0,"data":{"id":"x"}}`)
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	caller := NewStreamCaller(srv.URL, shortStreamTimeouts(), testLogger())
	result := caller.Call(context.Background(), "work_items.create", map[string]any{"title": "t"})

	m, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), m["code"])
}

func TestStreamCallerFallbackEndpoint(t *testing.T) {
	postedPath := make(chan string, 1)
	messages := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		// No endpoint event; the caller must degrade to /messages.
		writeSSE(t, w, "keepalive", "ping")
		select {
		case msg := <-messages:
			writeSSE(t, w, "message", msg)
		case <-r.Context().Done():
			return
		}
		<-r.Context().Done()
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		postedPath <- r.URL.Path
		messages <- messageEnvelope(t, `{"code":0}`)
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	timeouts := shortStreamTimeouts()
	timeouts.Endpoint = 300 * time.Millisecond
	timeouts.FirstEvent = 100 * time.Millisecond

	caller := NewStreamCaller(srv.URL, timeouts, testLogger())
	result := caller.Call(context.Background(), "projects.list", nil)

	assert.Equal(t, "/messages", <-postedPath)
	assert.Equal(t, map[string]any{"code": float64(0)}, result)
}

func TestStreamCallerWarnsOnRejectedPost(t *testing.T) {
	messages := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "endpoint", "/messages")
		select {
		case msg := <-messages:
			writeSSE(t, w, "message", msg)
		case <-r.Context().Done():
			return
		}
		<-r.Context().Done()
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		// A server that rejects the POST may still answer on the
		// stream; the rejection must surface in verbose output.
		messages <- messageEnvelope(t, `{"code":0}`)
		http.Error(w, "session expired", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	log := logging.NewLoggerWithWriter(true, false, false, &out)

	caller := NewStreamCaller(srv.URL, shortStreamTimeouts(), log)
	result := caller.Call(context.Background(), "projects.list", nil)

	assert.Equal(t, map[string]any{"code": float64(0)}, result)
	assert.Contains(t, out.String(), "404")
}

func TestStreamCallerMessageTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "endpoint", "/messages")
		<-r.Context().Done()
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		// Accept the POST but never emit a message event.
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	timeouts := shortStreamTimeouts()
	timeouts.Message = 300 * time.Millisecond

	caller := NewStreamCaller(srv.URL, timeouts, testLogger())

	start := time.Now()
	result := caller.Call(context.Background(), "projects.list", nil)
	elapsed := time.Since(start)

	m, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m["error"], "no SSE response")
	assert.Less(t, elapsed, 3*time.Second, "timeout must not hang past the deadline")
}

func TestStreamCallerServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	srv.Close()

	timeouts := shortStreamTimeouts()
	timeouts.Endpoint = 200 * time.Millisecond
	timeouts.FirstEvent = 100 * time.Millisecond
	timeouts.Message = 200 * time.Millisecond

	caller := NewStreamCaller(srv.URL, timeouts, testLogger())
	result := caller.Call(context.Background(), "projects.list", nil)

	assert.True(t, IsErrorResult(result))
}
