package workers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/aristath/finassist/internal/scheduler"
)

// Document types reported by FileExtractor.
const (
	DocumentCSV     = "csv_statement"
	DocumentOFX     = "ofx_statement"
	DocumentPDF     = "pdf_document"
	DocumentImage   = "image_receipt"
	DocumentText    = "text_document"
	DocumentUnknown = "unknown"
)

// ErrEmptyAttachment is returned for attachments without content.
var ErrEmptyAttachment = errors.New("attachment is empty")

// Extractor analyzes a user attachment.
type Extractor interface {
	Extract(ctx context.Context, att *scheduler.Attachment) (scheduler.DocumentAnalysis, error)
}

// FileExtractor classifies attachments from their name, MIME type and
// leading bytes. It does not OCR images or parse PDFs; those are reported
// with lower confidence and only basic metadata.
type FileExtractor struct{}

// Extract implements Extractor.
func (FileExtractor) Extract(ctx context.Context, att *scheduler.Attachment) (scheduler.DocumentAnalysis, error) {
	if att == nil || len(att.Data) == 0 {
		return scheduler.DocumentAnalysis{}, ErrEmptyAttachment
	}
	if err := ctx.Err(); err != nil {
		return scheduler.DocumentAnalysis{}, err
	}

	data := map[string]any{
		"file_name":  att.Name,
		"size_bytes": len(att.Data),
	}

	switch classify(att) {
	case DocumentCSV:
		return extractCSV(att, data)
	case DocumentOFX:
		data["transactions"] = bytes.Count(bytes.ToUpper(att.Data), []byte("<STMTTRN>"))
		return scheduler.DocumentAnalysis{DocumentType: DocumentOFX, Confidence: 0.9, StructuredData: data}, nil
	case DocumentPDF:
		return scheduler.DocumentAnalysis{DocumentType: DocumentPDF, Confidence: 0.6, StructuredData: data}, nil
	case DocumentImage:
		data["mime_type"] = mimeType(att)
		return scheduler.DocumentAnalysis{DocumentType: DocumentImage, Confidence: 0.5, StructuredData: data}, nil
	case DocumentText:
		text := string(att.Data)
		data["lines"] = countLines(text)
		data["preview"] = preview(text, 500)
		return scheduler.DocumentAnalysis{DocumentType: DocumentText, Confidence: 0.7, StructuredData: data}, nil
	default:
		return scheduler.DocumentAnalysis{
			DocumentType:   DocumentUnknown,
			StructuredData: data,
			Error:          "unsupported document format",
		}, nil
	}
}

func classify(att *scheduler.Attachment) string {
	switch strings.ToLower(filepath.Ext(att.Name)) {
	case ".csv":
		return DocumentCSV
	case ".ofx", ".qfx":
		return DocumentOFX
	case ".pdf":
		return DocumentPDF
	case ".png", ".jpg", ".jpeg", ".webp", ".heic":
		return DocumentImage
	case ".txt":
		return DocumentText
	}

	mt := mimeType(att)
	switch {
	case mt == "text/csv":
		return DocumentCSV
	case mt == "application/x-ofx" || bytes.Contains(att.Data[:min(len(att.Data), 512)], []byte("OFXHEADER")):
		return DocumentOFX
	case mt == "application/pdf":
		return DocumentPDF
	case strings.HasPrefix(mt, "image/"):
		return DocumentImage
	case strings.HasPrefix(mt, "text/"):
		return DocumentText
	}
	return DocumentUnknown
}

// mimeType returns the declared MIME type or sniffs one from the content.
func mimeType(att *scheduler.Attachment) string {
	declared := att.MIMEType
	if declared == "" {
		declared = http.DetectContentType(att.Data)
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return declared
	}
	return mt
}

func extractCSV(att *scheduler.Attachment, data map[string]any) (scheduler.DocumentAnalysis, error) {
	r := csv.NewReader(bytes.NewReader(att.Data))
	r.FieldsPerRecord = -1
	if looksSemicolonSeparated(att.Data) {
		r.Comma = ';'
	}

	records, err := r.ReadAll()
	if err != nil {
		return scheduler.DocumentAnalysis{
			DocumentType:   DocumentCSV,
			Confidence:     0.3,
			StructuredData: data,
			Error:          fmt.Sprintf("malformed csv: %v", err),
		}, nil
	}
	if len(records) > 0 {
		data["columns"] = records[0]
		data["rows"] = len(records) - 1
	} else {
		data["rows"] = 0
	}
	return scheduler.DocumentAnalysis{DocumentType: DocumentCSV, Confidence: 0.95, StructuredData: data}, nil
}

// looksSemicolonSeparated reports whether the header line uses ';' as a
// separator, as many European bank exports do.
func looksSemicolonSeparated(b []byte) bool {
	line, _, _ := bytes.Cut(b, []byte("\n"))
	return bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(","))
}

func countLines(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// preview truncates s to at most n runes.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
