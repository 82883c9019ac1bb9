package scheduler

import (
	"context"
	"sort"
)

// Payload is the kind-specific input of a task. Implementations are limited
// to the types in this file so dispatch over kinds stays exhaustive.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Output is the kind-specific result of a completed task.
type Output interface {
	Kind() Kind
	isOutput()
}

// Runner executes one kind of task. prior holds the outputs of every task
// completed so far in the same workflow.
type Runner interface {
	Run(ctx context.Context, payload Payload, prior Results) (Output, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, payload Payload, prior Results) (Output, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, payload Payload, prior Results) (Output, error) {
	return f(ctx, payload, prior)
}

// Attachment is a user-supplied document (bank statement, receipt, invoice).
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DocumentAnalysis is what the document extractor reports for an attachment.
type DocumentAnalysis struct {
	DocumentType   string         `json:"document_type"`
	Confidence     float64        `json:"confidence"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// FinancialContext is the caller-provided snapshot of the user's accounts,
// cards and recent transactions. Opaque to the scheduler.
type FinancialContext map[string]any

// DocumentPayload asks for an attachment to be analyzed. Precomputed, when
// set, carries an analysis done before the request arrived.
type DocumentPayload struct {
	Attachment  *Attachment
	Precomputed *DocumentAnalysis
}

// AnalysisPayload asks for an analysis of the user's data.
type AnalysisPayload struct {
	Message          string
	FinancialContext FinancialContext
}

// OperationPayload asks for record changes derived from the message and,
// when DocumentTaskID is set, from that task's document output.
type OperationPayload struct {
	Message          string
	FinancialContext FinancialContext
	DocumentTaskID   string
}

// ValidationPayload names the operation tasks to validate.
type ValidationPayload struct {
	OperationTaskIDs []string
}

// CommunicationPayload asks for the final reply to the user.
type CommunicationPayload struct {
	Message          string
	UserID           string
	FinancialContext FinancialContext
}

func (DocumentPayload) Kind() Kind      { return KindDocumentProcessing }
func (AnalysisPayload) Kind() Kind      { return KindDataAnalysis }
func (OperationPayload) Kind() Kind     { return KindFinancialOperation }
func (ValidationPayload) Kind() Kind    { return KindValidation }
func (CommunicationPayload) Kind() Kind { return KindCommunication }

func (DocumentPayload) isPayload()      {}
func (AnalysisPayload) isPayload()      {}
func (OperationPayload) isPayload()     {}
func (ValidationPayload) isPayload()    {}
func (CommunicationPayload) isPayload() {}

// DocumentOutput carries the extracted document analysis.
type DocumentOutput struct {
	Analysis DocumentAnalysis
}

// AnalysisOutput is a short analysis of the user's data.
type AnalysisOutput struct {
	Summary  string
	Insights []string
}

// ProposedOperation is one record change suggested by the operation worker.
type ProposedOperation struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`
	Valid       bool    `json:"valid"`
	Reason      string  `json:"reason,omitempty"`
}

// OperationOutput lists proposed record changes.
type OperationOutput struct {
	Operations []ProposedOperation
}

// ValidationOutput reports whether the operations may be confirmed.
type ValidationOutput struct {
	Approved bool
	Issues   []string
}

// SourceRef is a context source cited in the reply.
type SourceRef struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// CommunicationOutput is the reply shown to the user.
type CommunicationOutput struct {
	Message    string
	Sources    []SourceRef
	Confidence float64
}

func (DocumentOutput) Kind() Kind      { return KindDocumentProcessing }
func (AnalysisOutput) Kind() Kind      { return KindDataAnalysis }
func (OperationOutput) Kind() Kind     { return KindFinancialOperation }
func (ValidationOutput) Kind() Kind    { return KindValidation }
func (CommunicationOutput) Kind() Kind { return KindCommunication }

func (DocumentOutput) isOutput()      {}
func (AnalysisOutput) isOutput()      {}
func (OperationOutput) isOutput()     {}
func (ValidationOutput) isOutput()    {}
func (CommunicationOutput) isOutput() {}

// Results maps task IDs to the outputs of completed tasks.
type Results map[string]Output

// Document returns the first document output, if any.
func (r Results) Document() (DocumentOutput, bool) {
	for _, out := range r {
		if doc, ok := out.(DocumentOutput); ok {
			return doc, true
		}
	}
	return DocumentOutput{}, false
}

// Analysis returns the first analysis output, if any.
func (r Results) Analysis() (AnalysisOutput, bool) {
	for _, out := range r {
		if a, ok := out.(AnalysisOutput); ok {
			return a, true
		}
	}
	return AnalysisOutput{}, false
}

// Operation returns the output of the given operation task.
func (r Results) Operation(taskID string) (OperationOutput, bool) {
	op, ok := r[taskID].(OperationOutput)
	return op, ok
}

// Validation returns the first validation output, if any.
func (r Results) Validation() (ValidationOutput, bool) {
	for _, out := range r {
		if v, ok := out.(ValidationOutput); ok {
			return v, true
		}
	}
	return ValidationOutput{}, false
}

// Communication returns the first communication output, if any.
func (r Results) Communication() (CommunicationOutput, bool) {
	for _, out := range r {
		if c, ok := out.(CommunicationOutput); ok {
			return c, true
		}
	}
	return CommunicationOutput{}, false
}

// Operations returns every operation output ordered by task ID.
func (r Results) Operations() []OperationOutput {
	ids := make([]string, 0, len(r))
	for id, out := range r {
		if _, ok := out.(OperationOutput); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	ops := make([]OperationOutput, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, r[id].(OperationOutput))
	}
	return ops
}
