// Package export renders damage reports into printable documents.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
)

// Request contains parameters for an export operation
type Request struct {
	Format Format
	// Cause is the narrative printed in the cause section. It falls back to
	// the report's own cause field when empty.
	Cause string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	// Path is where the artifact was written, empty when no output dir is set.
	Path string
}

var (
	// ErrUnsupportedFormat indicates the requested format is not known.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
