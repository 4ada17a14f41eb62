// Package export renders a finalised proposal to PDF or DOCX.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ParseFormat accepts "pdf" or "docx" in any case. Empty means PDF.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatDOCX:
		return FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, value)
	}
}

// Filename is Proposal_Automation_<unix millis>.<ext>.
func Filename(format Format, now time.Time) string {
	return fmt.Sprintf("Proposal_Automation_%d.%s", now.UnixMilli(), format)
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	// Reference is the stored artifact location, empty when no artifact store is configured.
	Reference string
}

var (
	// ErrUnsupportedFormat indicates a format other than pdf or docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
