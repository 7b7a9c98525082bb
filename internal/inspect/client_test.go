package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openprx/openpr/internal/logging"
)

func TestNewInspector(t *testing.T) {
	logger := logging.NewLogger(false, false, false)
	inspector := New(Config{
		Endpoint:  "http://localhost:8090",
		Transport: "http",
		Logger:    logger,
		Version:   "1.0.0",
	})

	if inspector == nil {
		t.Fatal("Expected inspector to be created, but got nil")
	}
	if inspector.FindTool("projects.list") != nil {
		t.Error("Expected empty tool cache before Connect")
	}
	if len(inspector.Tools()) != 0 {
		t.Error("Expected Tools() to be empty before Connect")
	}
}

func TestConnectRejectsUnknownTransport(t *testing.T) {
	inspector := New(Config{
		Endpoint:  "http://localhost:8090",
		Transport: "telepathy",
		Logger:    logging.NewLogger(false, false, false),
	})

	if err := inspector.Connect(context.Background()); err == nil {
		t.Error("Expected Connect to fail for unknown transport")
	}
}

func TestVerifyCatalog(t *testing.T) {
	tools := []mcp.Tool{
		{Name: "projects.list"},
		{Name: "projects.get"},
		{Name: "widgets.spin"},
	}
	expected := []string{"projects.list", "projects.get", "members.list"}

	missing, extra := VerifyCatalog(tools, expected)

	if len(missing) != 1 || missing[0] != "members.list" {
		t.Errorf("missing = %v, want [members.list]", missing)
	}
	if len(extra) != 1 || extra[0] != "widgets.spin" {
		t.Errorf("extra = %v, want [widgets.spin]", extra)
	}

	missing, extra = VerifyCatalog(tools[:2], []string{"projects.list", "projects.get"})
	if len(missing) != 0 || len(extra) != 0 {
		t.Errorf("expected clean verification, got missing=%v extra=%v", missing, extra)
	}
}

func TestShouldReconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"unexpected eof", errors.New("Unexpected EOF"), true},
		{"tool error", errors.New("tool not found"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldReconnect(tc.err); got != tc.want {
				t.Errorf("shouldReconnect(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs("", "projects.list")
	if err != nil || args != nil {
		t.Errorf("empty args should parse to nil, got %v, %v", args, err)
	}

	args, err = parseToolArgs(`{"query": "login", "limit": 5}`, "work_items.search")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["query"] != "login" {
		t.Errorf("query = %v, want login", args["query"])
	}

	if _, err := parseToolArgs("not json", "projects.list"); err == nil {
		t.Error("expected error for invalid JSON arguments")
	}
}

func TestExecuteCommandValidation(t *testing.T) {
	r := NewREPL(New(Config{Logger: logging.NewLogger(false, false, false)}), logging.NewLogger(false, false, false))

	if err := r.executeCommand(context.Background(), "frobnicate"); err == nil {
		t.Error("expected error for unknown command")
	}
	if err := r.executeCommand(context.Background(), "call"); err == nil {
		t.Error("expected usage error when call is given no tool name")
	}
	if err := r.executeCommand(context.Background(), ""); err != nil {
		t.Errorf("blank input should be a no-op, got %v", err)
	}
}
