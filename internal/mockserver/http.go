package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Handler returns the HTTP surface: POST /mcp/rpc for direct JSON-RPC,
// GET /sse for the event stream and POST /messages for submitting
// requests whose responses arrive on the stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/rpc", s.serveRPC)
	mux.HandleFunc("/sse", s.serveSSE)
	mux.HandleFunc("/messages", s.serveMessages)
	return mux
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	resp := s.HandleMessage(msg)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WarningVerbose("response write failed: %v", err)
	}
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request) {
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	session := uuid.NewString()
	ch := make(chan string, 16)

	s.mu.Lock()
	s.sessions[session] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, session)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /messages?session=%s\n\n", session)
	flusher.Flush()
	s.log.Debug("sse session %s opened", session)

	for {
		select {
		case payload := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			s.log.Debug("sse session %s closed", session)
			return
		}
	}
}

func (s *Server) serveMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session := r.URL.Query().Get("session")

	s.mu.Lock()
	ch, found := s.sessions[session]
	if !found && len(s.sessions) == 1 {
		// Callers that POST the discovery payload verbatim may drop the
		// query string; with a single live session the route is still
		// unambiguous.
		for _, only := range s.sessions {
			ch = only
			found = true
		}
	}
	s.mu.Unlock()
	if !found {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var msg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if resp := s.HandleMessage(msg); resp != nil {
		encoded, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, "response encoding failed", http.StatusInternalServerError)
			return
		}
		select {
		case ch <- string(encoded):
		default:
			http.Error(w, "session backlogged", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
