package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/openprx/openpr/internal/logging"
)

// StdioCaller is the process-pipe binding: the server binary is spawned
// fresh for every call, receives the envelope on stdin and is expected
// to print a single-line JSON-RPC response among its stdout output.
type StdioCaller struct {
	// Path is the server executable.
	Path string
	// Args are passed to the process; defaults to the transport
	// selection flag when empty.
	Args []string
	// Env is the fixed environment for the process (service URL, bot
	// token, workspace id, minimal PATH).
	Env []string

	timeout time.Duration
	log     *logging.Logger
}

// StdioEnv builds the fixed process environment from run configuration.
func StdioEnv(apiURL, token, workspaceID string) []string {
	return []string{
		"OPENPR_API_URL=" + apiURL,
		"OPENPR_BOT_TOKEN=" + token,
		"OPENPR_WORKSPACE_ID=" + workspaceID,
		"PATH=/usr/bin:/bin",
	}
}

// NewStdioCaller creates the process-pipe adapter.
func NewStdioCaller(path string, env []string, timeout time.Duration, log *logging.Logger) *StdioCaller {
	return &StdioCaller{
		Path:    path,
		Args:    []string{"--transport", "stdio"},
		Env:     env,
		timeout: timeout,
		log:     log,
	}
}

// Name implements Caller.
func (c *StdioCaller) Name() string { return "STDIO" }

// Call implements Caller. Each call is a full process lifecycle: start,
// write the envelope, read stdout to EOF, terminate. The timeout kills
// the process via context cancellation.
func (c *StdioCaller) Call(ctx context.Context, tool string, args map[string]any) Result {
	env := NewEnvelope(tool, args)
	payload, err := env.Marshal()
	if err != nil {
		return Errorf("%v", err)
	}

	c.log.Request("tools/call", env.Params)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Stdin = bytes.NewReader(payload)
	// The kill on deadline reaches only the direct child. A forked
	// grandchild can keep the stdout pipe open past that, and Wait
	// would block on pipe EOF without a bound of its own.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Errorf("process timed out after %v", c.timeout)
		}
		// A non-zero exit can still have printed a response; fall
		// through to the stdout scan only when output exists.
		if stdout.Len() == 0 {
			return Errorf("running %s: %v", c.Path, err)
		}
	}

	result, ok := firstJSONLine(&stdout)
	if !ok {
		return Errorf("no JSON output")
	}

	c.log.Response("tools/call", result)
	return result
}

// firstJSONLine scans process output for the first line that looks like
// a JSON object and normalizes it. Log lines and banners on stdout are
// skipped.
func firstJSONLine(out *bytes.Buffer) (Result, bool) {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		result, err := decodeAndNormalize([]byte(line))
		if err != nil {
			continue
		}
		return result, true
	}
	return nil, false
}
