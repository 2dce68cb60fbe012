// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/doclens/internal/domain"
)

// Extractor pulls plain text out of one document format.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry selects an Extractor by normalized content type.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a Registry wired with the PDF, DOCX and Markdown extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(domain.ContentTypePDF, NewPDFExtractor())
	r.Register(domain.ContentTypeDOCX, NewDOCXExtractor())
	r.Register(domain.ContentTypeMarkdown, NewMarkdownExtractor())
	return r
}

// Register binds ext to contentType, replacing any previous binding.
func (r *Registry) Register(contentType string, ext Extractor) {
	r.extractors[domain.NormalizeContentType(contentType)] = ext
}

// Supports reports whether an extractor is registered for contentType.
func (r *Registry) Supports(contentType string) bool {
	_, ok := r.extractors[domain.NormalizeContentType(contentType)]
	return ok
}

// Extract runs the extractor for contentType and returns valid UTF-8 with NULs
// removed. Failures and empty output are reported as domain.ErrExtractionFailure.
func (r *Registry) Extract(ctx context.Context, contentType string, data []byte) (string, error) {
	ext, ok := r.extractors[domain.NormalizeContentType(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedContentType, contentType)
	}

	text, err := ext.Extract(ctx, data)
	if err != nil {
		if errors.Is(err, domain.ErrExtractionFailure) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailure, err)
	}

	// Chunk payloads are protobuf strings and must be valid UTF-8.
	text = strings.ReplaceAll(strings.ToValidUTF8(text, ""), "\x00", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text content found", domain.ErrExtractionFailure)
	}
	return text, nil
}
