// Package planner turns a user request into a task graph by keyword
// inspection of the message. Planning is deterministic: the same request
// always yields the same graph shape.
package planner

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aristath/finassist/internal/scheduler"
)

// Default keyword stems. Matching is prefix-based on accent-folded words,
// so "importe", "importar" and "import" all hit "import". Keywords of up to
// three runes, such as "add", only match a whole word.
var (
	DefaultActionKeywords = []string{
		"creat", "criar", "criei", "crie", "record", "registr", "import", "categor",
		"transfer", "gastei", "paguei", "comprei", "recebi", "adicion", "add",
		"lancar", "lancei", "lancamento",
	}
	DefaultAnalysisKeywords = []string{
		"analy", "analis", "compar", "report", "relator", "trend", "tendenc",
		"summar", "resum", "insight", "breakdown", "evolu",
	}
)

// Request is what the planner inspects.
type Request struct {
	Message          string
	UserID           string
	Attachment       *scheduler.Attachment
	DocumentAnalysis *scheduler.DocumentAnalysis // Analysis done before the request, if any
	FinancialContext scheduler.FinancialContext
}

// HasDocument reports whether the request carries a document to process.
func (r Request) HasDocument() bool {
	return r.Attachment != nil || r.DocumentAnalysis != nil
}

// PlanningError reports a request that cannot be planned.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return "planning failed: " + e.Reason
}

// Config configures a Planner.
type Config struct {
	ActionKeywords   []string
	AnalysisKeywords []string
	NewID            func() string // Task ID generator; defaults to uuid
	Logger           *slog.Logger
}

// Planner builds task graphs. Safe for concurrent use.
type Planner struct {
	actions  []string
	analysis []string
	newID    func() string
	logger   *slog.Logger
}

// New creates a Planner. Empty keyword lists fall back to the defaults.
func New(cfg Config) *Planner {
	p := &Planner{
		actions:  foldAll(cfg.ActionKeywords),
		analysis: foldAll(cfg.AnalysisKeywords),
		newID:    cfg.NewID,
		logger:   cfg.Logger,
	}
	if len(p.actions) == 0 {
		p.actions = DefaultActionKeywords
	}
	if len(p.analysis) == 0 {
		p.analysis = DefaultAnalysisKeywords
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

func foldAll(stems []string) []string {
	var out []string
	for _, s := range stems {
		if s = strings.TrimSpace(fold(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Plan returns the task graph for req. A request that cannot be planned
// degrades to a single communication task.
func (p *Planner) Plan(req Request) []*scheduler.Task {
	tasks, err := p.Build(req)
	if err != nil {
		p.logger.Warn("planning failed, using single-task fallback", "user_id", req.UserID, "error", err)
		return []*scheduler.Task{p.communication(req, nil)}
	}
	return tasks
}

// Build returns the task graph for req. Tasks are emitted in a fixed rule
// order and only depend on tasks emitted earlier, so the graph is acyclic
// and the communication task is its unique sink.
func (p *Planner) Build(req Request) ([]*scheduler.Task, error) {
	if !utf8.ValidString(req.Message) {
		return nil, &PlanningError{Reason: "message is not valid UTF-8"}
	}
	if strings.TrimSpace(req.Message) == "" && !req.HasDocument() {
		return nil, &PlanningError{Reason: "empty message without attachment"}
	}

	ws := words(req.Message)
	var tasks []*scheduler.Task

	var docID string
	if req.HasDocument() {
		docID = p.newID()
		tasks = append(tasks, &scheduler.Task{
			ID:       docID,
			Kind:     scheduler.KindDocumentProcessing,
			Priority: scheduler.PriorityHigh,
			Payload: scheduler.DocumentPayload{
				Attachment:  req.Attachment,
				Precomputed: req.DocumentAnalysis,
			},
		})
	}

	if matchesAny(ws, p.analysis) {
		tasks = append(tasks, &scheduler.Task{
			ID:       p.newID(),
			Kind:     scheduler.KindDataAnalysis,
			Priority: scheduler.PriorityMedium,
			Payload: scheduler.AnalysisPayload{
				Message:          req.Message,
				FinancialContext: req.FinancialContext,
			},
		})
	}

	var opIDs []string
	if matchesAny(ws, p.actions) {
		op := &scheduler.Task{
			ID:       p.newID(),
			Kind:     scheduler.KindFinancialOperation,
			Priority: scheduler.PriorityHigh,
			Payload: scheduler.OperationPayload{
				Message:          req.Message,
				FinancialContext: req.FinancialContext,
				DocumentTaskID:   docID,
			},
		}
		if docID != "" {
			op.DependsOn = []string{docID}
		}
		opIDs = append(opIDs, op.ID)
		tasks = append(tasks, op)
	}

	if len(opIDs) > 0 {
		tasks = append(tasks, &scheduler.Task{
			ID:        p.newID(),
			Kind:      scheduler.KindValidation,
			Priority:  scheduler.PriorityCritical,
			Payload:   scheduler.ValidationPayload{OperationTaskIDs: append([]string(nil), opIDs...)},
			DependsOn: append([]string(nil), opIDs...),
		})
	}

	tasks = append(tasks, p.communication(req, tasks))

	p.logger.Debug("planned workflow", "user_id", req.UserID, "tasks", len(tasks), "kinds", describe(tasks))
	return tasks, nil
}

func (p *Planner) communication(req Request, upstream []*scheduler.Task) *scheduler.Task {
	deps := make([]string, 0, len(upstream))
	for _, t := range upstream {
		deps = append(deps, t.ID)
	}
	return &scheduler.Task{
		ID:       p.newID(),
		Kind:     scheduler.KindCommunication,
		Priority: scheduler.PriorityMedium,
		Payload: scheduler.CommunicationPayload{
			Message:          req.Message,
			UserID:           req.UserID,
			FinancialContext: req.FinancialContext,
		},
		DependsOn: deps,
	}
}

func describe(tasks []*scheduler.Task) string {
	kinds := make([]string, len(tasks))
	for i, t := range tasks {
		kinds[i] = t.Kind.String()
	}
	return fmt.Sprint(kinds)
}
