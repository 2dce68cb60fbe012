package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/timmy/doclens/internal/domain"
)

// PDFExtractor reads the text-showing operators out of each page content stream.
// It does not apply font encodings, so text set in CID fonts comes back as bytes.
type PDFExtractor struct {
	conf *model.Configuration
}

func NewPDFExtractor() *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), e.conf)
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %v", domain.ErrExtractionFailure, err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return "", fmt.Errorf("%w: validate pdf: %v", domain.ErrExtractionFailure, err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for i := 1; i <= pdfCtx.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", domain.ErrExtractionFailure, i, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", domain.ErrExtractionFailure, i, err)
		}

		if text := strings.TrimSpace(ContentStreamText(content)); text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}
