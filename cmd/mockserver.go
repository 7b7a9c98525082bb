package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openprx/openpr/internal/logging"
	"github.com/openprx/openpr/internal/mockserver"
)

var (
	mockListenAddr string
	mockTransport  string
)

func newMockServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory OpenPR tool server",
		Long: `Runs a seeded in-memory OpenPR tool server for trying the harness
without a real backend. The http mode serves all three wire surfaces
(/mcp/rpc, /sse, /messages); the stdio mode answers newline-delimited
JSON-RPC on stdin/stdout, which is what the harness spawns per call
when exercising the stdio transport.

On startup the seeded fixture identifiers are printed so a regression
run can be pointed at them.`,
		RunE: runMockServer,
	}

	cmd.Flags().StringVar(&mockListenAddr, "listen-addr", ":8090", "Listen address for the http transport")
	cmd.Flags().StringVar(&mockTransport, "transport", "http", "Serving mode (http, stdio)")

	return cmd
}

func runMockServer(cmd *cobra.Command, args []string) error {
	// stdio mode owns stdout for protocol traffic, so logs go to stderr
	logger := logging.NewLogger(verbose, !noColor, jsonRPC)
	if mockTransport == "stdio" {
		logger = logging.NewLoggerWithWriter(verbose, false, jsonRPC, os.Stderr)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	setupSignalHandler(cancel)

	srv := mockserver.New(logger)
	fx := srv.Fixture()
	logger.Info("Seeded fixture:")
	logger.Info("  workspace: %s", fx.WorkspaceID)
	logger.Info("  project:   %s", fx.ProjectID)
	logger.Info("  work item: %s (%s)", fx.WorkItemID, fx.WorkItemIdent)
	logger.Info("  labels:    %s, %s", fx.LabelID, fx.SecondLabelID)
	logger.Info("  proposal:  %s", fx.ProposalID)

	switch mockTransport {
	case "stdio":
		logger.Info("Serving on stdio...")
		if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case "http":
		addr := mockListenAddr
		if !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		httpServer := &http.Server{
			Addr:    addr,
			Handler: srv.Handler(),
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		logger.Info("Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	default:
		return errors.New("unknown transport: use http or stdio")
	}
}
