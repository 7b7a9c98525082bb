package harness

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/openprx/openpr/internal/logging"
	"github.com/openprx/openpr/internal/transport"
)

// Suite walks the full tool surface over a single transport, leaning
// on the seeded sample entities for reads and creating throwaway
// entities for writes. Checks run in dependency order: write sections
// that lost their parent entity are skipped, not failed.
type Suite struct {
	cfg   Config
	tally *Tally
	log   *logging.Logger

	// runID makes created entity names unique per run so reruns
	// against a dirty server do not collide.
	runID string
}

func NewSuite(cfg Config, tally *Tally, log *logging.Logger) *Suite {
	return &Suite{
		cfg:   cfg,
		tally: tally,
		log:   log,
		runID: uuid.NewString()[:8],
	}
}

// Run drives every section against one transport adapter.
func (s *Suite) Run(ctx context.Context, caller transport.Caller) {
	name := caller.Name()
	call := func(tool string, args map[string]any) any {
		return caller.Call(ctx, tool, args)
	}
	check := func(tool string, res any, pred Predicate) bool {
		return s.tally.Check(name, tool, res, pred)
	}

	s.log.Plain("\n📁 Projects (list/get)")
	check("projects.list", call("projects.list", nil), IsOK)
	check("projects.get", call("projects.get", map[string]any{"project_id": s.cfg.ProjectID}), IsOK)
	if s.aborted() {
		return
	}

	s.log.Plain("\n📋 Work Items (read: list/get/search/get_by_identifier)")
	check("work_items.list", call("work_items.list", map[string]any{"project_id": s.cfg.ProjectID}), IsOK)
	check("work_items.get", call("work_items.get", map[string]any{"work_item_id": s.cfg.Samples.WorkItemID}), IsOK)
	check("work_items.search", call("work_items.search", map[string]any{"query": "test"}), IsOK)
	check("work_items.get_by_identifier", call("work_items.get_by_identifier", map[string]any{"identifier": s.cfg.Samples.Identifier}), IsObject)
	if s.aborted() {
		return
	}

	s.log.Plain("\n📋 Work Items (write: create/update/labels/delete)")
	wi := call("work_items.create", map[string]any{
		"project_id": s.cfg.ProjectID,
		"title":      name + "-regression-" + s.runID,
		"priority":   "low",
		"state":      "backlog",
	})
	check("work_items.create", wi, HasID)
	if wiID := ID(wi); wiID != "" {
		check("work_items.update", call("work_items.update", map[string]any{"work_item_id": wiID, "state": "in_progress", "priority": "high"}), IsOK)
		check("work_items.add_label", call("work_items.add_label", map[string]any{"work_item_id": wiID, "label_id": s.cfg.Samples.LabelID}), OKOrConfirmation)
		check("work_items.add_labels", call("work_items.add_labels", map[string]any{"work_item_id": wiID, "label_ids": []any{s.cfg.Samples.SecondLabelID}}), OKOrConfirmation)
		check("work_items.list_labels", call("work_items.list_labels", map[string]any{"work_item_id": wiID}), IsOK)
		check("work_items.remove_label", call("work_items.remove_label", map[string]any{"work_item_id": wiID, "label_id": s.cfg.Samples.SecondLabelID}), OKOrConfirmation)

		s.log.Plain("\n💬 Comments (create/list/delete)")
		cmt := call("comments.create", map[string]any{"work_item_id": wiID, "content": name + " regression comment " + s.runID})
		check("comments.create", cmt, HasID)
		check("comments.list", call("comments.list", map[string]any{"work_item_id": wiID}), IsOK)
		if cmtID := ID(cmt); cmtID != "" {
			check("comments.delete", call("comments.delete", map[string]any{"comment_id": cmtID}), OKOrConfirmation)
		} else {
			s.tally.SkipN(1, "skipping comments.delete (create failed)")
		}

		check("work_items.delete", call("work_items.delete", map[string]any{"work_item_id": wiID}), OKOrConfirmation)
	} else {
		s.tally.SkipN(10, "skipping write checks (work_items.create failed)")
	}
	if s.aborted() {
		return
	}

	s.log.Plain("\n📎 Files (upload)")
	content := base64.StdEncoding.EncodeToString([]byte("regression test log content"))
	check("files.upload", call("files.upload", map[string]any{
		"filename":       name + "-" + s.runID + ".log",
		"content_base64": content,
	}), HasURL)
	if s.aborted() {
		return
	}

	s.log.Plain("\n🏷️ Labels (list/list_by_project/create/update/delete)")
	check("labels.list", call("labels.list", nil), IsOK)
	check("labels.list_by_project", call("labels.list_by_project", map[string]any{"project_id": s.cfg.ProjectID}), IsOK)
	lbl := call("labels.create", map[string]any{"name": name + "-label-" + s.runID, "color": "#cc5500"})
	check("labels.create", lbl, HasID)
	if lblID := ID(lbl); lblID != "" {
		check("labels.update", call("labels.update", map[string]any{"label_id": lblID, "name": name + "-label-upd-" + s.runID}), IsOK)
		check("labels.delete", call("labels.delete", map[string]any{"label_id": lblID}), OKOrConfirmation)
	} else {
		s.tally.SkipN(2, "skipping label update/delete (create failed)")
	}
	if s.aborted() {
		return
	}

	s.log.Plain("\n👥 Members (list)")
	check("members.list", call("members.list", nil), IsOK)

	s.log.Plain("\n🏃 Sprints (list/create/update/delete)")
	check("sprints.list", call("sprints.list", map[string]any{"project_id": s.cfg.ProjectID}), IsOK)
	spr := call("sprints.create", map[string]any{
		"project_id": s.cfg.ProjectID,
		"name":       name + "-sprint-" + s.runID,
		"start_date": "2026-04-01",
		"end_date":   "2026-04-14",
	})
	check("sprints.create", spr, HasID)
	if sprID := ID(spr); sprID != "" {
		check("sprints.update", call("sprints.update", map[string]any{"sprint_id": sprID, "name": name + "-sprint-upd-" + s.runID}), IsOK)
		check("sprints.delete", call("sprints.delete", map[string]any{"sprint_id": sprID}), OKOrConfirmation)
	} else {
		s.tally.SkipN(2, "skipping sprint update/delete (create failed)")
	}
	if s.aborted() {
		return
	}

	s.log.Plain("\n📝 Proposals (list/get)")
	check("proposals.list", call("proposals.list", map[string]any{"project_id": s.cfg.ProjectID}), IsOK)
	check("proposals.get", call("proposals.get", map[string]any{"proposal_id": s.cfg.Samples.ProposalID}), HasCode)

	s.log.Plain("\n🔍 Search (all)")
	check("search.all", call("search.all", map[string]any{"query": "test"}), IsOK)
}

func (s *Suite) aborted() bool {
	return s.cfg.FailFast && s.tally.Failed()
}
