// Package mockserver provides an in-memory, OpenPR-shaped tool server
// so the harness can be exercised without the real backend. It speaks
// the same three bindings the harness drives: POST /mcp/rpc, the
// /sse + /messages event-stream pair, and a stdio loop.
//
// It is a fixture, not a reimplementation: tool behavior is the
// minimum needed to satisfy the regression suite's response-shape
// checks.
package mockserver

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/openprx/openpr/internal/logging"
)

// Fixture exposes the identifiers seeded into a fresh server, so runs
// and tests can be pointed at existing entities.
type Fixture struct {
	WorkspaceID    string
	ProjectID      string
	WorkItemID     string
	WorkItemIdent  string
	LabelID        string
	SecondLabelID  string
	ProposalID     string
}

// Server is an in-memory OpenPR tool server.
type Server struct {
	mu sync.Mutex

	projects  map[string]map[string]any
	workItems map[string]map[string]any
	labels    map[string]map[string]any
	comments  map[string]map[string]any
	sprints   map[string]map[string]any
	proposals map[string]map[string]any
	members   []map[string]any

	// label ids attached per work item id
	itemLabels map[string][]string

	sessions map[string]chan string

	fixture Fixture
	log     *logging.Logger

	handlers map[string]func(args map[string]any) any
}

// New creates a server seeded with one project, one work item, two
// labels, a member roster and one proposal.
func New(log *logging.Logger) *Server {
	s := &Server{
		projects:   map[string]map[string]any{},
		workItems:  map[string]map[string]any{},
		labels:     map[string]map[string]any{},
		comments:   map[string]map[string]any{},
		sprints:    map[string]map[string]any{},
		proposals:  map[string]map[string]any{},
		itemLabels: map[string][]string{},
		sessions:   map[string]chan string{},
		log:        log,
	}
	s.handlers = s.buildHandlers()
	s.seed()
	return s
}

// Fixture returns the seeded identifiers.
func (s *Server) Fixture() Fixture { return s.fixture }

func (s *Server) seed() {
	s.fixture.WorkspaceID = uuid.NewString()

	projectID := uuid.NewString()
	s.projects[projectID] = map[string]any{
		"id":         projectID,
		"name":       "Platform",
		"identifier": "PLAT",
	}
	s.fixture.ProjectID = projectID

	workItemID := uuid.NewString()
	ident := "PLAT-1"
	s.workItems[workItemID] = map[string]any{
		"id":         workItemID,
		"project_id": projectID,
		"identifier": ident,
		"title":      "Seed work item",
		"state":      "backlog",
		"priority":   "medium",
	}
	s.fixture.WorkItemID = workItemID
	s.fixture.WorkItemIdent = ident

	for i, name := range []string{"bug", "regression"} {
		labelID := uuid.NewString()
		s.labels[labelID] = map[string]any{
			"id":    labelID,
			"name":  name,
			"color": "#cc5500",
		}
		if i == 0 {
			s.fixture.LabelID = labelID
		} else {
			s.fixture.SecondLabelID = labelID
		}
	}

	proposalID := "PROP-" + uuid.NewString()
	s.proposals[proposalID] = map[string]any{
		"id":         proposalID,
		"project_id": projectID,
		"title":      "Seed proposal",
		"status":     "open",
	}
	s.fixture.ProposalID = proposalID

	s.members = []map[string]any{
		{"id": uuid.NewString(), "name": "admin", "role": "owner"},
		{"id": uuid.NewString(), "name": "bot", "role": "member"},
	}
}

// Dispatch runs one tool invocation against the store and returns the
// payload the server would wrap into a content text: either a
// {code, data} object, a bare confirmation string, or for files.upload
// an object with a url field.
func (s *Server) Dispatch(tool string, args map[string]any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	handler, ok := s.handlers[tool]
	if !ok {
		return map[string]any{"code": 404, "error": fmt.Sprintf("unknown tool: %s", tool)}
	}
	if args == nil {
		args = map[string]any{}
	}
	return handler(args)
}

// ToolNames lists every tool the server dispatches, in no particular
// order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

func ok(data any) map[string]any {
	return map[string]any{"code": 0, "data": data}
}

func notFound(what string) map[string]any {
	return map[string]any{"code": 404, "error": what + " not found"}
}

func badRequest(msg string) map[string]any {
	return map[string]any{"code": 400, "error": msg}
}

func str(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func items(m map[string]map[string]any) []any {
	out := make([]any, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func (s *Server) buildHandlers() map[string]func(args map[string]any) any {
	return map[string]func(args map[string]any) any{
		"projects.list":   s.projectsList,
		"projects.get":    s.projectsGet,
		"projects.create": s.projectsCreate,
		"projects.update": s.projectsUpdate,
		"projects.delete": s.projectsDelete,

		"work_items.list":              s.workItemsList,
		"work_items.get":               s.workItemsGet,
		"work_items.search":            s.workItemsSearch,
		"work_items.get_by_identifier": s.workItemsGetByIdentifier,
		"work_items.create":            s.workItemsCreate,
		"work_items.update":            s.workItemsUpdate,
		"work_items.delete":            s.workItemsDelete,
		"work_items.add_label":         s.workItemsAddLabel,
		"work_items.add_labels":        s.workItemsAddLabels,
		"work_items.list_labels":       s.workItemsListLabels,
		"work_items.remove_label":      s.workItemsRemoveLabel,

		"comments.create": s.commentsCreate,
		"comments.list":   s.commentsList,
		"comments.delete": s.commentsDelete,

		"files.upload": s.filesUpload,

		"labels.list":            s.labelsList,
		"labels.list_by_project": s.labelsListByProject,
		"labels.create":          s.labelsCreate,
		"labels.update":          s.labelsUpdate,
		"labels.delete":          s.labelsDelete,

		"members.list": s.membersList,

		"sprints.list":   s.sprintsList,
		"sprints.create": s.sprintsCreate,
		"sprints.update": s.sprintsUpdate,
		"sprints.delete": s.sprintsDelete,

		"proposals.list":   s.proposalsList,
		"proposals.get":    s.proposalsGet,
		"proposals.create": s.proposalsCreate,

		"search.all": s.searchAll,
	}
}

func (s *Server) projectsList(map[string]any) any {
	return ok(map[string]any{"items": items(s.projects), "total": len(s.projects)})
}

func (s *Server) projectsGet(args map[string]any) any {
	p, found := s.projects[str(args, "project_id")]
	if !found {
		return notFound("project")
	}
	return ok(p)
}

func (s *Server) projectsCreate(args map[string]any) any {
	name := str(args, "name")
	if name == "" {
		return badRequest("name is required")
	}
	id := uuid.NewString()
	p := map[string]any{"id": id, "name": name, "identifier": str(args, "identifier")}
	s.projects[id] = p
	return ok(p)
}

func (s *Server) projectsUpdate(args map[string]any) any {
	p, found := s.projects[str(args, "project_id")]
	if !found {
		return notFound("project")
	}
	if name := str(args, "name"); name != "" {
		p["name"] = name
	}
	return ok(p)
}

func (s *Server) projectsDelete(args map[string]any) any {
	if _, found := s.projects[str(args, "project_id")]; !found {
		return notFound("project")
	}
	delete(s.projects, str(args, "project_id"))
	return "project deleted successfully"
}

func (s *Server) workItemsList(args map[string]any) any {
	projectID := str(args, "project_id")
	out := []any{}
	for _, wi := range s.workItems {
		if projectID == "" || wi["project_id"] == projectID {
			out = append(out, wi)
		}
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) workItemsGet(args map[string]any) any {
	wi, found := s.workItems[str(args, "work_item_id")]
	if !found {
		return notFound("work item")
	}
	return ok(wi)
}

func (s *Server) workItemsSearch(args map[string]any) any {
	query := strings.ToLower(str(args, "query"))
	out := []any{}
	for _, wi := range s.workItems {
		title, _ := wi["title"].(string)
		if query == "" || strings.Contains(strings.ToLower(title), query) {
			out = append(out, wi)
		}
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) workItemsGetByIdentifier(args map[string]any) any {
	ident := str(args, "identifier")
	for _, wi := range s.workItems {
		if wi["identifier"] == ident {
			return ok(wi)
		}
	}
	return notFound("work item")
}

func (s *Server) workItemsCreate(args map[string]any) any {
	projectID := str(args, "project_id")
	if _, found := s.projects[projectID]; !found {
		return notFound("project")
	}
	title := str(args, "title")
	if title == "" {
		return badRequest("title is required")
	}
	id := uuid.NewString()
	wi := map[string]any{
		"id":         id,
		"project_id": projectID,
		"identifier": fmt.Sprintf("PLAT-%d", len(s.workItems)+1),
		"title":      title,
		"state":      str(args, "state"),
		"priority":   str(args, "priority"),
	}
	s.workItems[id] = wi
	return ok(wi)
}

func (s *Server) workItemsUpdate(args map[string]any) any {
	wi, found := s.workItems[str(args, "work_item_id")]
	if !found {
		return notFound("work item")
	}
	for _, field := range []string{"title", "state", "priority"} {
		if v := str(args, field); v != "" {
			wi[field] = v
		}
	}
	return ok(wi)
}

func (s *Server) workItemsDelete(args map[string]any) any {
	id := str(args, "work_item_id")
	if _, found := s.workItems[id]; !found {
		return notFound("work item")
	}
	delete(s.workItems, id)
	delete(s.itemLabels, id)
	return "work item deleted successfully"
}

func (s *Server) attachLabel(workItemID, labelID string) any {
	if _, found := s.workItems[workItemID]; !found {
		return notFound("work item")
	}
	if _, found := s.labels[labelID]; !found {
		return notFound("label")
	}
	for _, attached := range s.itemLabels[workItemID] {
		if attached == labelID {
			return "label already added"
		}
	}
	s.itemLabels[workItemID] = append(s.itemLabels[workItemID], labelID)
	return nil
}

func (s *Server) workItemsAddLabel(args map[string]any) any {
	if resp := s.attachLabel(str(args, "work_item_id"), str(args, "label_id")); resp != nil {
		return resp
	}
	return "label added"
}

func (s *Server) workItemsAddLabels(args map[string]any) any {
	ids, _ := args["label_ids"].([]any)
	if len(ids) == 0 {
		return badRequest("label_ids is required")
	}
	for _, raw := range ids {
		labelID, _ := raw.(string)
		if resp := s.attachLabel(str(args, "work_item_id"), labelID); resp != nil {
			if m, isErr := resp.(map[string]any); isErr {
				return m
			}
		}
	}
	return "labels added"
}

func (s *Server) workItemsListLabels(args map[string]any) any {
	id := str(args, "work_item_id")
	if _, found := s.workItems[id]; !found {
		return notFound("work item")
	}
	out := []any{}
	for _, labelID := range s.itemLabels[id] {
		if label, found := s.labels[labelID]; found {
			out = append(out, label)
		}
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) workItemsRemoveLabel(args map[string]any) any {
	id := str(args, "work_item_id")
	labelID := str(args, "label_id")
	attached := s.itemLabels[id]
	for i, existing := range attached {
		if existing == labelID {
			s.itemLabels[id] = append(attached[:i], attached[i+1:]...)
			return "label removed"
		}
	}
	return notFound("label attachment")
}

func (s *Server) commentsCreate(args map[string]any) any {
	workItemID := str(args, "work_item_id")
	if _, found := s.workItems[workItemID]; !found {
		return notFound("work item")
	}
	content := str(args, "content")
	if content == "" {
		return badRequest("content is required")
	}
	id := uuid.NewString()
	cmt := map[string]any{"id": id, "work_item_id": workItemID, "content": content}
	s.comments[id] = cmt
	return ok(cmt)
}

func (s *Server) commentsList(args map[string]any) any {
	workItemID := str(args, "work_item_id")
	out := []any{}
	for _, cmt := range s.comments {
		if cmt["work_item_id"] == workItemID {
			out = append(out, cmt)
		}
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) commentsDelete(args map[string]any) any {
	id := str(args, "comment_id")
	if _, found := s.comments[id]; !found {
		return notFound("comment")
	}
	delete(s.comments, id)
	return "comment deleted successfully"
}

func (s *Server) filesUpload(args map[string]any) any {
	filename := str(args, "filename")
	if filename == "" {
		return badRequest("filename is required")
	}
	content, err := base64.StdEncoding.DecodeString(str(args, "content_base64"))
	if err != nil {
		return badRequest("content_base64 is not valid base64")
	}
	return map[string]any{
		"url":      fmt.Sprintf("https://files.openpr.local/%s/%s", uuid.NewString(), filename),
		"filename": filename,
		"size":     len(content),
	}
}

func (s *Server) labelsList(map[string]any) any {
	return ok(map[string]any{"items": items(s.labels), "total": len(s.labels)})
}

func (s *Server) labelsListByProject(args map[string]any) any {
	if _, found := s.projects[str(args, "project_id")]; !found {
		return notFound("project")
	}
	return ok(map[string]any{"items": items(s.labels), "total": len(s.labels)})
}

func (s *Server) labelsCreate(args map[string]any) any {
	name := str(args, "name")
	if name == "" {
		return badRequest("name is required")
	}
	for _, label := range s.labels {
		if label["name"] == name {
			return badRequest("label name already exists")
		}
	}
	id := uuid.NewString()
	label := map[string]any{"id": id, "name": name, "color": str(args, "color")}
	s.labels[id] = label
	return ok(label)
}

func (s *Server) labelsUpdate(args map[string]any) any {
	label, found := s.labels[str(args, "label_id")]
	if !found {
		return notFound("label")
	}
	if name := str(args, "name"); name != "" {
		label["name"] = name
	}
	if color := str(args, "color"); color != "" {
		label["color"] = color
	}
	return ok(label)
}

func (s *Server) labelsDelete(args map[string]any) any {
	id := str(args, "label_id")
	if _, found := s.labels[id]; !found {
		return notFound("label")
	}
	delete(s.labels, id)
	return "label deleted successfully"
}

func (s *Server) membersList(map[string]any) any {
	out := make([]any, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) sprintsList(args map[string]any) any {
	projectID := str(args, "project_id")
	out := []any{}
	for _, sp := range s.sprints {
		if projectID == "" || sp["project_id"] == projectID {
			out = append(out, sp)
		}
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) sprintsCreate(args map[string]any) any {
	projectID := str(args, "project_id")
	if _, found := s.projects[projectID]; !found {
		return notFound("project")
	}
	name := str(args, "name")
	if name == "" {
		return badRequest("name is required")
	}
	id := uuid.NewString()
	sp := map[string]any{
		"id":         id,
		"project_id": projectID,
		"name":       name,
		"start_date": str(args, "start_date"),
		"end_date":   str(args, "end_date"),
	}
	s.sprints[id] = sp
	return ok(sp)
}

func (s *Server) sprintsUpdate(args map[string]any) any {
	sp, found := s.sprints[str(args, "sprint_id")]
	if !found {
		return notFound("sprint")
	}
	if name := str(args, "name"); name != "" {
		sp["name"] = name
	}
	return ok(sp)
}

func (s *Server) sprintsDelete(args map[string]any) any {
	id := str(args, "sprint_id")
	if _, found := s.sprints[id]; !found {
		return notFound("sprint")
	}
	delete(s.sprints, id)
	return "sprint deleted successfully"
}

func (s *Server) proposalsList(args map[string]any) any {
	projectID := str(args, "project_id")
	out := []any{}
	for _, p := range s.proposals {
		if projectID == "" || p["project_id"] == projectID {
			out = append(out, p)
		}
	}
	return ok(map[string]any{"items": out, "total": len(out)})
}

func (s *Server) proposalsGet(args map[string]any) any {
	p, found := s.proposals[str(args, "proposal_id")]
	if !found {
		return notFound("proposal")
	}
	return ok(p)
}

func (s *Server) proposalsCreate(args map[string]any) any {
	projectID := str(args, "project_id")
	if _, found := s.projects[projectID]; !found {
		return notFound("project")
	}
	id := "PROP-" + uuid.NewString()
	p := map[string]any{
		"id":         id,
		"project_id": projectID,
		"title":      str(args, "title"),
		"status":     "open",
	}
	s.proposals[id] = p
	return ok(p)
}

func (s *Server) searchAll(args map[string]any) any {
	query := strings.ToLower(str(args, "query"))
	match := func(m map[string]any, fields ...string) bool {
		if query == "" {
			return true
		}
		for _, field := range fields {
			if v, _ := m[field].(string); strings.Contains(strings.ToLower(v), query) {
				return true
			}
		}
		return false
	}

	workItems := []any{}
	for _, wi := range s.workItems {
		if match(wi, "title", "identifier") {
			workItems = append(workItems, wi)
		}
	}
	projects := []any{}
	for _, p := range s.projects {
		if match(p, "name", "identifier") {
			projects = append(projects, p)
		}
	}
	return ok(map[string]any{"work_items": workItems, "projects": projects})
}
