package workers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aristath/finassist/internal/retrieval"
	"github.com/aristath/finassist/internal/scheduler"
)

const analysisSystemPrompt = `You are a personal finance analyst. Analyze the user's financial data and answer with a JSON object:
{"summary": "two or three sentences", "insights": ["short insight", "..."]}
Return ONLY the JSON object. Answer in the language of the user's message.`

const operationSystemPrompt = `You turn a user's request into proposed changes to their financial records.
Answer with a JSON object:
{"operations": [{"type": "expense|income|transfer|import|categorize", "description": "...", "amount": 0.0, "category": "...", "valid": true, "reason": "why invalid, if so"}]}
Mark an operation "valid": false when an amount, account or category cannot be determined.
Return ONLY the JSON object.`

const communicationSystemPrompt = `You are a friendly personal finance assistant. Reply to the user in the language of their message.
Use the provided context and results when relevant and never invent balances or transactions.
Keep replies short and concrete.`

var jsonBlock = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)```")

// extractJSON returns the JSON object in a model reply, which may be wrapped
// in a markdown code block or surrounded by prose.
func extractJSON(content string) string {
	if m := jsonBlock.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// writeContext renders the financial context as indented JSON.
func writeContext(b *strings.Builder, fc scheduler.FinancialContext) {
	if len(fc) == 0 {
		return
	}
	raw, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\nFinancial context:\n%s\n", raw)
}

func analysisPrompt(p scheduler.AnalysisPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n", p.Message)
	writeContext(&b, p.FinancialContext)
	return b.String()
}

func operationPrompt(p scheduler.OperationPayload, doc *scheduler.DocumentAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n", p.Message)
	if doc != nil {
		raw, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Fprintf(&b, "\nAttached document analysis:\n%s\n", raw)
	}
	writeContext(&b, p.FinancialContext)
	return b.String()
}

func communicationPrompt(p scheduler.CommunicationPayload, hc retrieval.HybridContext, prior scheduler.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User message: %s\n", p.Message)

	if !hc.Empty() {
		fmt.Fprintf(&b, "\nRelevant context (%s):\n", hc.Summary)
		for i, s := range hc.Sources {
			fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, s.Source, s.Label(), s.Content)
		}
	}

	if doc, ok := prior.Document(); ok {
		fmt.Fprintf(&b, "\nDocument: %s (confidence %.2f)\n", doc.Analysis.DocumentType, doc.Analysis.Confidence)
		if doc.Analysis.Error != "" {
			fmt.Fprintf(&b, "Document problem: %s\n", doc.Analysis.Error)
		}
	}
	if a, ok := prior.Analysis(); ok {
		fmt.Fprintf(&b, "\nAnalysis: %s\n", a.Summary)
		for _, in := range a.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
	}
	if ops := prior.Operations(); len(ops) > 0 {
		b.WriteString("\nProposed operations:\n")
		for _, out := range ops {
			for _, op := range out.Operations {
				status := "ok"
				if !op.Valid {
					status = "needs review: " + op.Reason
				}
				fmt.Fprintf(&b, "- %s %s %.2f (%s) [%s]\n", op.Type, op.Description, op.Amount, op.Category, status)
			}
		}
	}
	if v, ok := prior.Validation(); ok {
		fmt.Fprintf(&b, "\nValidation approved: %t\n", v.Approved)
		for _, issue := range v.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	writeContext(&b, p.FinancialContext)
	return b.String()
}
