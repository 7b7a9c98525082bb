package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// ServeStdio reads newline-delimited JSON-RPC requests from in and
// writes one response line per request to out. It returns when in is
// exhausted, the context is cancelled, or a write fails. Malformed
// input terminates the loop with an error since the peer is a pipe,
// not a reconnecting client.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msg map[string]any
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := s.HandleMessage(msg)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
}
