// Package inspect provides an interactive client for poking at a live
// OpenPR tool server: listing the advertised tools, verifying them
// against the expected catalog and calling them ad hoc from a REPL.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openprx/openpr/internal/logging"
)

const protocolVersion = "2024-11-05"

// Inspector maintains one MCP session against the server.
type Inspector struct {
	endpoint   string
	transport  string
	serverPath string
	env        []string
	logger     *logging.Logger
	version    string

	client    *client.Client
	toolCache []mcp.Tool
	mu        sync.RWMutex
}

// Config holds configuration for creating a new Inspector.
type Config struct {
	// Endpoint is the server base URL for the http and sse transports.
	Endpoint string
	// Transport selects http, sse or stdio.
	Transport string
	// ServerPath is the binary spawned for the stdio transport.
	ServerPath string
	// Env is the environment handed to a spawned stdio server.
	Env     []string
	Logger  *logging.Logger
	Version string
}

// New creates an Inspector from a configuration. Call Connect before
// using it.
func New(cfg Config) *Inspector {
	return &Inspector{
		endpoint:   cfg.Endpoint,
		transport:  cfg.Transport,
		serverPath: cfg.ServerPath,
		env:        cfg.Env,
		logger:     cfg.Logger,
		version:    cfg.Version,
		toolCache:  []mcp.Tool{},
	}
}

// Connect establishes the session and performs the protocol handshake.
func (i *Inspector) Connect(ctx context.Context) error {
	i.logger.Info("Connecting to MCP server at %s using %s transport...", i.endpoint, i.transport)

	var mcpClient *client.Client
	var err error
	switch i.transport {
	case "sse":
		mcpClient, err = client.NewSSEMCPClient(strings.TrimSuffix(i.endpoint, "/") + "/sse")
	case "stdio":
		mcpClient, err = client.NewStdioMCPClient(i.serverPath, i.env, "--transport", "stdio")
	case "http", "streamable-http":
		mcpClient, err = client.NewStreamableHttpClient(i.endpoint)
	default:
		return fmt.Errorf("unknown transport %q", i.transport)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", i.transport, err)
	}
	i.client = mcpClient

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start client failed: %w", err)
	}
	if err := i.initialize(ctx); err != nil {
		return err
	}
	return i.refreshTools(ctx, true)
}

// Reconnect tears the session down and establishes a fresh one.
func (i *Inspector) Reconnect(ctx context.Context) error {
	i.logger.Info("Attempting to reconnect to MCP server...")
	if i.client != nil {
		_ = i.client.Close()
	}
	return i.Connect(ctx)
}

// Close shuts the session down.
func (i *Inspector) Close() {
	if i.client != nil {
		_ = i.client.Close()
	}
}

func (i *Inspector) initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    "openpr-inspect",
				Version: i.version,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}

	i.logger.Request("initialize", req.Params)
	result, err := i.client.Initialize(ctx, req)
	if err != nil {
		i.logger.Error("Initialize failed: %v", err)
		return err
	}
	i.logger.Response("initialize", result)
	return nil
}

// refreshTools fetches the advertised tool list. On a refresh the diff
// against the previous list is logged.
func (i *Inspector) refreshTools(ctx context.Context, initial bool) error {
	req := mcp.ListToolsRequest{}

	i.logger.Request("tools/list", req.Params)
	result, err := i.client.ListTools(ctx, req)
	if err != nil {
		i.logger.Error("ListTools failed: %v", err)
		return err
	}
	i.logger.Response("tools/list", result)

	i.mu.Lock()
	oldTools := i.toolCache
	i.toolCache = result.Tools
	i.mu.Unlock()

	if !initial {
		i.showToolDiff(oldTools, result.Tools)
	}
	return nil
}

// Tools returns the cached tool list.
func (i *Inspector) Tools() []mcp.Tool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]mcp.Tool, len(i.toolCache))
	copy(out, i.toolCache)
	return out
}

// FindTool looks a tool up in the cache by name.
func (i *Inspector) FindTool(name string) *mcp.Tool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, t := range i.toolCache {
		if t.Name == name {
			return &t
		}
	}
	return nil
}

// CallTool executes a tool with the given arguments, with reconnection logic.
func (i *Inspector) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	i.logger.Request("tools/call", req.Params)

	const maxRetries = 1
	var result *mcp.CallToolResult
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err = i.client.CallTool(ctx, req)
		if err == nil {
			i.logger.Response("tools/call", result)
			return result, nil
		}

		if shouldReconnect(err) && attempt < maxRetries {
			i.logger.Error("Connection lost during tool call. Attempting to reconnect...")
			if reconnErr := i.Reconnect(ctx); reconnErr != nil {
				err = fmt.Errorf("failed to reconnect: %w", reconnErr)
				break
			}
			i.logger.Info("Reconnected successfully. Retrying tool call...")
			continue
		}
		break
	}

	i.logger.Error("CallTool failed: %v", err)
	return nil, err
}

// showToolDiff displays the differences between old and new tool lists.
func (i *Inspector) showToolDiff(oldTools, newTools []mcp.Tool) {
	oldMap := make(map[string]mcp.Tool)
	for _, tool := range oldTools {
		oldMap[tool.Name] = tool
	}
	newMap := make(map[string]mcp.Tool)
	for _, tool := range newTools {
		newMap[tool.Name] = tool
	}

	var added, removed []string
	for name := range newMap {
		if _, exists := oldMap[name]; !exists {
			added = append(added, name)
		}
	}
	for name := range oldMap {
		if _, exists := newMap[name]; !exists {
			removed = append(removed, name)
		}
	}

	if len(added) == 0 && len(removed) == 0 {
		i.logger.Info("No tool changes detected")
		return
	}
	i.logger.Info("Tool changes detected:")
	sort.Strings(added)
	sort.Strings(removed)
	for _, name := range added {
		i.logger.Success("  + Added: %s", name)
	}
	for _, name := range removed {
		i.logger.Error("  - Removed: %s", name)
	}
}

// VerifyCatalog compares an advertised tool list against the expected
// names and returns what is missing and what is unexpected, sorted.
func VerifyCatalog(tools []mcp.Tool, expected []string) (missing, extra []string) {
	advertised := make(map[string]bool, len(tools))
	for _, t := range tools {
		advertised[t.Name] = true
	}
	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
		if !advertised[name] {
			missing = append(missing, name)
		}
	}
	for name := range advertised {
		if !want[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func shouldReconnect(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "transport is closing") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "unexpected eof") {
		return true
	}

	return false
}
