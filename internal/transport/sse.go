package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openprx/openpr/internal/logging"
)

// defaultMessagePath is POSTed to when the server never announces an
// endpoint event within the wait bound.
const defaultMessagePath = "/messages"

// StreamCaller is the event-stream binding. Each call opens a
// long-lived GET <base>/sse connection, discovers the POST endpoint
// from the first endpoint-typed event, POSTs the envelope there, and
// waits for a message-typed event carrying the response.
//
// Per call the adapter moves through Connecting, AwaitingEndpoint,
// EndpointReceived, Posted and AwaitingMessage before landing in
// Delivered or TimedOut; both terminal states cancel the listener.
type StreamCaller struct {
	base   string
	post   *http.Client
	stream *http.Client

	endpointWait time.Duration
	eventWait    time.Duration
	messageWait  time.Duration

	log *logging.Logger
}

// StreamTimeouts bounds the three waits of an event-stream call.
type StreamTimeouts struct {
	// Call bounds the POST of the envelope.
	Call time.Duration
	// Endpoint bounds the wait for the ready signal.
	Endpoint time.Duration
	// FirstEvent bounds the dequeue of the first queued event.
	FirstEvent time.Duration
	// Message bounds the overall wait for the response event.
	Message time.Duration
}

// DefaultStreamTimeouts mirrors the bounds the server is operated with.
func DefaultStreamTimeouts() StreamTimeouts {
	return StreamTimeouts{
		Call:       15 * time.Second,
		Endpoint:   5 * time.Second,
		FirstEvent: 3 * time.Second,
		Message:    10 * time.Second,
	}
}

// NewStreamCaller creates the event-stream adapter for the given base URL.
func NewStreamCaller(base string, timeouts StreamTimeouts, log *logging.Logger) *StreamCaller {
	return &StreamCaller{
		base: base,
		post: &http.Client{Timeout: timeouts.Call},
		// The stream connection must outlive the whole call; it is
		// bounded by the listener context, not a client timeout.
		stream:       &http.Client{},
		endpointWait: timeouts.Endpoint,
		eventWait:    timeouts.FirstEvent,
		messageWait:  timeouts.Message,
		log:          log,
	}
}

// Name implements Caller.
func (c *StreamCaller) Name() string { return "SSE" }

// Call implements Caller.
func (c *StreamCaller) Call(ctx context.Context, tool string, args map[string]any) Result {
	env := NewEnvelope(tool, args)
	payload, err := env.Marshal()
	if err != nil {
		return Errorf("%v", err)
	}

	c.log.Request("tools/call", env.Params)

	// The cancel func doubles as the listener's stop signal; every
	// return path below releases it.
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, 32)
	ready := make(chan struct{})
	go c.listen(listenCtx, events, ready)

	// AwaitingEndpoint: missing the ready signal degrades to the
	// fallback path rather than aborting.
	select {
	case <-ready:
	case <-time.After(c.endpointWait):
		c.log.WarningVerbose("no endpoint event within %v, falling back to %s", c.endpointWait, defaultMessagePath)
	case <-ctx.Done():
		return Errorf("%v", ctx.Err())
	}

	endpoint := defaultMessagePath
	select {
	case ev := <-events:
		if ev.Type == "endpoint" && ev.Data != "" {
			endpoint = ev.Data
		}
	case <-time.After(c.eventWait):
	case <-ctx.Done():
		return Errorf("%v", ctx.Err())
	}

	url := endpoint
	if strings.HasPrefix(endpoint, "/") {
		url = c.base + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Errorf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.post.Do(req)
	if err != nil {
		return Errorf("%v", err)
	}
	// The body carries no payload of interest but must be drained for
	// connection reuse.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WarningVerbose("POST %s returned %s", url, resp.Status)
	}

	// AwaitingMessage: the response arrives on the stream, not in the
	// POST body.
	deadline := time.NewTimer(c.messageWait)
	defer deadline.Stop()

	for {
		select {
		case ev := <-events:
			if ev.Type != "message" {
				continue
			}
			result, err := decodeAndNormalize([]byte(ev.Data))
			if err != nil {
				return Errorf("malformed message event: %v", err)
			}
			c.log.Response("tools/call", result)
			return result
		case <-deadline.C:
			return Errorf("no SSE response within %v", c.messageWait)
		case <-ctx.Done():
			return Errorf("%v", ctx.Err())
		}
	}
}

// listen drains the event stream into the events channel until the
// context is cancelled or the connection ends. It is best effort:
// errors end the listener silently, and the ready channel is closed
// once, the first time an endpoint event is observed.
func (c *StreamCaller) listen(ctx context.Context, events chan<- Event, ready chan<- struct{}) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/sse", nil)
	if err != nil {
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var parser EventParser
	signaled := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		ev, ok := parser.Feed(scanner.Text())
		if !ok {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
		if ev.Type == "endpoint" && !signaled {
			close(ready)
			signaled = true
		}
	}
}
