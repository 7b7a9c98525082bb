package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/openprx/openpr/internal/logging"
)

// RPCCaller is the synchronous request/response binding: one POST to
// <base>/mcp/rpc per call.
type RPCCaller struct {
	base    string
	client  *http.Client
	timeout time.Duration
	log     *logging.Logger
}

// NewRPCCaller creates the HTTP adapter for the given base URL.
func NewRPCCaller(base string, timeout time.Duration, log *logging.Logger) *RPCCaller {
	return &RPCCaller{
		base:    base,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log,
	}
}

// Name implements Caller.
func (c *RPCCaller) Name() string { return "HTTP" }

// Call implements Caller.
func (c *RPCCaller) Call(ctx context.Context, tool string, args map[string]any) Result {
	env := NewEnvelope(tool, args)
	body, err := env.Marshal()
	if err != nil {
		return Errorf("%v", err)
	}

	c.log.Request("tools/call", env.Params)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.base+"/mcp/rpc", bytes.NewReader(body))
	if err != nil {
		return Errorf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Errorf("%v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Errorf("reading response body: %v", err)
	}

	result, err := decodeAndNormalize(data)
	if err != nil {
		return Errorf("malformed response body: %v", err)
	}

	c.log.Response("tools/call", result)
	return result
}
