package export

import (
	"context"
	"fmt"
	"time"

	"copilot/api/internal/copilot"
)

// Renderer converts rendered HTML to the bytes of one output format.
type Renderer func(ctx context.Context, html string) ([]byte, error)

// ArtifactStore keeps a copy of each export and returns where it lives.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Service provides proposal export functionality
type Service struct {
	renderers map[Format]Renderer
	artifacts ArtifactStore
	now       func() time.Time
}

type Option func(*Service)

// WithArtifactStore uploads every export after rendering.
func WithArtifactStore(store ArtifactStore) Option {
	return func(s *Service) { s.artifacts = store }
}

// WithRenderer replaces the renderer of one format.
func WithRenderer(format Format, r Renderer) Option {
	return func(s *Service) { s.renderers[format] = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new export service
func NewService(opts ...Option) *Service {
	s := &Service{
		renderers: map[Format]Renderer{
			FormatPDF:  renderPDF,
			FormatDOCX: renderDOCX,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders the workspace proposal. Callers check the finalisation gate.
func (s *Service) Export(ctx context.Context, state copilot.State, format Format) (*Result, error) {
	render, ok := s.renderers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	now := s.now()
	html, err := RenderProposalHTML(NewTemplateData(state, now))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	data, err := render(ctx, html)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Data:     data,
		Filename: Filename(format, now),
		MimeType: mimeType(format),
	}
	if s.artifacts != nil {
		key := state.ID + "/" + result.Filename
		ref, err := s.artifacts.Put(ctx, key, result.MimeType, data)
		if err != nil {
			return nil, fmt.Errorf("store export: %w", err)
		}
		result.Reference = ref
	}
	return result, nil
}

func mimeType(format Format) string {
	if format == FormatDOCX {
		return mimeDOCX
	}
	return mimePDF
}
