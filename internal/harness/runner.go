package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openprx/openpr/internal/logging"
	"github.com/openprx/openpr/internal/transport"
)

// Runner builds one adapter per configured transport and drives the
// suite across them, then prints the consolidated summary.
type Runner struct {
	cfg Config
	log *logging.Logger
}

func NewRunner(cfg Config, log *logging.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Report is the JSON document written when Config.Report is set.
type Report struct {
	Timestamp  string   `json:"timestamp"`
	Transports []string `json:"transports"`
	Pass       int      `json:"pass"`
	Fail       int      `json:"fail"`
	Skip       int      `json:"skip"`
	PassRate   int      `json:"pass_rate"`
	Failures   []string `json:"failures,omitempty"`
}

// Run executes the full regression and returns the tally. The error
// covers setup problems only; check failures are reported through the
// tally so the caller decides the exit status.
func (r *Runner) Run(ctx context.Context) (*Tally, error) {
	callers, err := r.callers()
	if err != nil {
		return nil, err
	}

	tally := NewTally(r.log)

	bar := strings.Repeat("=", 60)
	r.log.Plain("%s", bar)
	r.log.Plain("  OpenPR MCP regression (%d tools, %d transports)", len(Catalog()), len(callers))
	r.log.Plain("  %s", time.Now().Format("2006-01-02 15:04:05"))
	r.log.Plain("%s", bar)

	for _, caller := range callers {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		r.log.Plain("\n%s\n  Transport: %s\n%s", strings.Repeat("━", 50), caller.Name(), strings.Repeat("━", 50))
		NewSuite(r.cfg, tally, r.log).Run(ctx, caller)
		if r.cfg.FailFast && tally.Failed() {
			break
		}
	}

	r.summary(tally)

	if r.cfg.Report != "" {
		if err := r.writeReport(tally); err != nil {
			return tally, err
		}
		r.log.Info("report written to %s", r.cfg.Report)
	}
	return tally, nil
}

func (r *Runner) callers() ([]transport.Caller, error) {
	out := make([]transport.Caller, 0, len(r.cfg.Transports))
	for _, name := range r.cfg.Transports {
		switch name {
		case TransportHTTP:
			out = append(out, transport.NewRPCCaller(r.cfg.BaseURL, r.cfg.Timeouts.Call, r.log))
		case TransportStdio:
			env := transport.StdioEnv(r.cfg.APIURL, r.cfg.Token, r.cfg.WorkspaceID)
			out = append(out, transport.NewStdioCaller(r.cfg.ServerPath, env, r.cfg.Timeouts.Call, r.log))
		case TransportSSE:
			timeouts := transport.StreamTimeouts{
				Call:       r.cfg.Timeouts.Call,
				Endpoint:   r.cfg.Timeouts.Endpoint,
				FirstEvent: r.cfg.Timeouts.FirstEvent,
				Message:    r.cfg.Timeouts.Message,
			}
			out = append(out, transport.NewStreamCaller(r.cfg.BaseURL, timeouts, r.log))
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}
	return out, nil
}

func (r *Runner) summary(t *Tally) {
	bar := strings.Repeat("=", 60)
	r.log.Plain("\n%s\n  Results\n%s", bar, bar)
	r.log.Plain("  ✅ passed:  %d", t.Pass)
	r.log.Plain("  ❌ failed:  %d", t.Fail)
	r.log.Plain("  ⏭️  skipped: %d", t.Skip)
	r.log.Plain("  📊 pass rate: %d%%", t.PassRate())
	if len(t.Failures) > 0 {
		r.log.Plain("\n  Failure details:")
		for _, line := range t.Failures {
			r.log.Plain("%s", line)
		}
	}
	r.log.Plain("%s", bar)
}

func (r *Runner) writeReport(t *Tally) error {
	report := Report{
		Timestamp:  time.Now().Format(time.RFC3339),
		Transports: r.cfg.Transports,
		Pass:       t.Pass,
		Fail:       t.Fail,
		Skip:       t.Skip,
		PassRate:   t.PassRate(),
		Failures:   t.Failures,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(r.cfg.Report, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Catalog lists the full advertised tool surface, in suite order.
// projects.create/update/delete and proposals.create are part of the
// surface but left alone by the suite: deleting projects would tear
// down the fixtures every other section reads from.
func Catalog() []string {
	return []string{
		"projects.list",
		"projects.get",
		"projects.create",
		"projects.update",
		"projects.delete",
		"work_items.list",
		"work_items.get",
		"work_items.search",
		"work_items.get_by_identifier",
		"work_items.create",
		"work_items.update",
		"work_items.add_label",
		"work_items.add_labels",
		"work_items.list_labels",
		"work_items.remove_label",
		"comments.create",
		"comments.list",
		"comments.delete",
		"work_items.delete",
		"files.upload",
		"labels.list",
		"labels.list_by_project",
		"labels.create",
		"labels.update",
		"labels.delete",
		"members.list",
		"sprints.list",
		"sprints.create",
		"sprints.update",
		"sprints.delete",
		"proposals.list",
		"proposals.get",
		"proposals.create",
		"search.all",
	}
}
