// Package export renders published portfolios to downloadable PDF and DOCX files.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	PortfolioID string
	Version     string // "latest" or publish hash
	Format      Format
}

// Portfolio represents the portfolio metadata for export
type Portfolio struct {
	ID          string
	Title       string
	OwnerName   string
	Slug        string
	PublishedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates portfolio content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
