package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openprx/openpr/internal/harness"
	"github.com/openprx/openpr/internal/inspect"
	"github.com/openprx/openpr/internal/logging"
	"github.com/openprx/openpr/internal/transport"
)

var (
	toolsEndpoint  string
	toolsTransport string
	toolsVerify    bool
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools a server advertises",
		Long: `Connects to the server, fetches its advertised tool list and prints
it. With --verify the list is additionally compared against the full
OpenPR tool catalog; missing or unexpected tools make the command
fail, which is useful as a cheap smoke check before a regression run.`,
		RunE: runTools,
	}

	cmd.Flags().StringVar(&toolsEndpoint, "endpoint", "http://localhost:8090", "Tool server base URL")
	cmd.Flags().StringVar(&toolsTransport, "transport", "http", "Transport to connect with (http, sse, stdio)")
	cmd.Flags().BoolVar(&toolsVerify, "verify", false, "Verify the advertised tools against the expected catalog")

	return cmd
}

func runTools(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(verbose, !noColor, jsonRPC)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	setupSignalHandler(cancel)

	cfg := harness.DefaultConfig()
	cfg.ApplyEnv()

	inspector := inspect.New(inspect.Config{
		Endpoint:   toolsEndpoint,
		Transport:  toolsTransport,
		ServerPath: cfg.ServerPath,
		Env:        transport.StdioEnv(cfg.APIURL, cfg.Token, cfg.WorkspaceID),
		Logger:     logger,
		Version:    version,
	})
	if err := inspector.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect client: %w", err)
	}
	defer inspector.Close()

	tools := inspector.Tools()
	logger.Info("Server advertises %d tools:", len(tools))
	for i, tool := range tools {
		logger.Plain("  %d. %-30s %s", i+1, tool.Name, tool.Description)
	}

	if !toolsVerify {
		return nil
	}

	missing, extra := inspect.VerifyCatalog(tools, harness.Catalog())
	if len(missing) == 0 && len(extra) == 0 {
		logger.Success("Tool catalog verified: all %d expected tools advertised", len(harness.Catalog()))
		return nil
	}
	for _, name := range missing {
		logger.Error("  - Missing: %s", name)
	}
	for _, name := range extra {
		logger.Warning("  + Unexpected: %s", name)
	}
	return fmt.Errorf("tool catalog mismatch: %d missing, %d unexpected", len(missing), len(extra))
}
