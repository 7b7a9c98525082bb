package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openprx/openpr/internal/harness"
	"github.com/openprx/openpr/internal/inspect"
	"github.com/openprx/openpr/internal/logging"
	"github.com/openprx/openpr/internal/transport"
)

var (
	version string

	configPath  string
	endpoint    string
	apiURL      string
	token       string
	workspaceID string
	projectID   string
	serverBin   string
	transports  []string
	reportPath  string
	failFast    bool
	callTimeout time.Duration

	sampleWorkItemID string
	sampleIdentifier string
	labelID          string
	secondLabelID    string
	proposalID       string

	verbose bool
	noColor bool
	jsonRPC bool
	repl    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "openpr-regress",
	Short: "OpenPR MCP regression harness",
	Long: `openpr-regress exercises every tool of an OpenPR MCP server over its
three transports and reports which calls still behave as expected.

For each selected transport it walks the full tool surface in
dependency order: reads go against pre-existing sample entities,
writes create throwaway entities that are deleted again at the end of
their section. Each response is normalized out of its MCP content
envelope and checked against a shape predicate; the run finishes with
a pass/fail/skip tally and exits non-zero when anything failed.

Transports:
- http:  JSON-RPC POSTed directly to <endpoint>/mcp/rpc
- stdio: a fresh server process spawned per call, talking over pipes
- sse:   requests POSTed to the discovered endpoint, responses read
         from the event stream

Configuration is resolved in order: built-in defaults, then the YAML
config file (--config), then OPENPR_* environment variables, then
flags. Sample entity identifiers (work item, labels, proposal) must
come from one of those sources since they live on the target server.

With --repl the harness instead opens an interactive session for
exploring the server: listing tools, describing their schemas and
calling them ad hoc.`,
	RunE: runRegression,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version for the application
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonRPC, "json-rpc", false, "Enable full JSON-RPC message logging")

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.Flags().StringVar(&endpoint, "endpoint", "", "Tool server base URL (default http://localhost:8090)")
	rootCmd.Flags().StringVar(&apiURL, "api-url", "", "Backing API URL handed to spawned stdio servers")
	rootCmd.Flags().StringVar(&token, "token", "", "Bot token for spawned stdio servers")
	rootCmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace ID for spawned stdio servers")
	rootCmd.Flags().StringVar(&projectID, "project", "", "Project the suite runs against")
	rootCmd.Flags().StringVar(&serverBin, "server-bin", "", "Server binary spawned per stdio call")
	rootCmd.Flags().StringSliceVar(&transports, "transports", nil, "Transports to exercise (http, stdio, sse)")
	rootCmd.Flags().StringVar(&reportPath, "report", "", "Path to save the JSON run report")
	rootCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop on the first failed check")
	rootCmd.Flags().DurationVar(&callTimeout, "timeout", 0, "Per-call timeout (default 15s)")

	rootCmd.Flags().StringVar(&sampleWorkItemID, "work-item-id", "", "Existing work item ID for read checks")
	rootCmd.Flags().StringVar(&sampleIdentifier, "identifier", "", "Existing work item identifier for lookup checks")
	rootCmd.Flags().StringVar(&labelID, "label-id", "", "Existing label ID attached during label checks")
	rootCmd.Flags().StringVar(&secondLabelID, "second-label-id", "", "Second existing label ID for batch label checks")
	rootCmd.Flags().StringVar(&proposalID, "proposal-id", "", "Proposal ID for proposal read checks")

	rootCmd.Flags().BoolVar(&repl, "repl", false, "Start interactive REPL mode instead of the regression")

	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newMockServerCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.MarkFlagsMutuallyExclusive("repl", "fail-fast")
	rootCmd.MarkFlagsMutuallyExclusive("repl", "report")
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()
}

// resolveConfig layers defaults, the config file, the environment and
// finally any flags that were set explicitly.
func resolveConfig(cmd *cobra.Command) (harness.Config, error) {
	cfg := harness.DefaultConfig()
	if configPath != "" {
		loaded, err := harness.LoadFile(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	overrides := []struct {
		name string
		src  *string
		dst  *string
	}{
		{"endpoint", &endpoint, &cfg.BaseURL},
		{"api-url", &apiURL, &cfg.APIURL},
		{"token", &token, &cfg.Token},
		{"workspace", &workspaceID, &cfg.WorkspaceID},
		{"project", &projectID, &cfg.ProjectID},
		{"server-bin", &serverBin, &cfg.ServerPath},
		{"report", &reportPath, &cfg.Report},
		{"work-item-id", &sampleWorkItemID, &cfg.Samples.WorkItemID},
		{"identifier", &sampleIdentifier, &cfg.Samples.Identifier},
		{"label-id", &labelID, &cfg.Samples.LabelID},
		{"second-label-id", &secondLabelID, &cfg.Samples.SecondLabelID},
		{"proposal-id", &proposalID, &cfg.Samples.ProposalID},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.name) {
			*o.dst = *o.src
		}
	}
	if cmd.Flags().Changed("transports") {
		cfg.Transports = transports
	}
	if cmd.Flags().Changed("fail-fast") {
		cfg.FailFast = failFast
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeouts.Call = callTimeout
	}
	return cfg, nil
}

func runRegression(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(verbose, !noColor, jsonRPC)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	setupSignalHandler(cancel)

	if repl {
		return runREPL(ctx, cfg, logger)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	tally, err := harness.NewRunner(cfg, logger).Run(ctx)
	if err != nil {
		return err
	}
	if tally.Failed() {
		os.Exit(1)
	}
	return nil
}

// runREPL opens an interactive session over the first configured
// transport.
func runREPL(ctx context.Context, cfg harness.Config, logger *logging.Logger) error {
	transportName := harness.TransportHTTP
	if len(cfg.Transports) > 0 {
		transportName = cfg.Transports[0]
	}

	inspector := inspect.New(inspect.Config{
		Endpoint:   cfg.BaseURL,
		Transport:  transportName,
		ServerPath: cfg.ServerPath,
		Env:        transport.StdioEnv(cfg.APIURL, cfg.Token, cfg.WorkspaceID),
		Logger:     logger,
		Version:    version,
	})
	if err := inspector.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect client: %w", err)
	}
	defer inspector.Close()

	if err := inspect.NewREPL(inspector, logger).Run(ctx); err != nil {
		return fmt.Errorf("REPL error: %w", err)
	}
	return nil
}
