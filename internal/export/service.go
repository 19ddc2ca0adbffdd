package export

import (
	"context"
	"fmt"
	"html/template"

	"folio/api/internal/editor"
)

// DataStore defines the data access the export service needs
type DataStore interface {
	GetPortfolio(ctx context.Context, id string) (Portfolio, error)
	// GetPortfolioContent loads the portfolio content for a version, where
	// version is "latest" or a publish hash.
	GetPortfolioContent(ctx context.Context, portfolioID, version string) (editor.Content, error)
}

// Service provides portfolio export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	pfl, err := s.store.GetPortfolio(ctx, req.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}

	content, err := s.store.GetPortfolioContent(ctx, req.PortfolioID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	data := TemplateData{
		Title:       pfl.Title,
		OwnerName:   pfl.OwnerName,
		ContentHTML: template.HTML(SectionsToHTML(content)),
		PublishedAt: pfl.PublishedAt,
	}

	html, err := RenderPortfolioHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, pfl.Title)
	case FormatDOCX:
		return exportDOCX(html, pfl.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
