package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/timmy/doclens/internal/domain"
)

const docxBodyPart = "word/document.xml"

// DOCXExtractor reads paragraph text from word/document.xml.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Value string `xml:",chardata"`
		} `xml:"t"`
		Tabs []struct{} `xml:"tab"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for range r.Tabs {
			sb.WriteByte('\t')
		}
		for _, t := range r.Text {
			sb.WriteString(t.Value)
		}
	}
	return sb.String()
}

func (e *DOCXExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive: %v", domain.ErrExtractionFailure, err)
	}

	var body []byte
	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", docxBodyPart, err)
		}
		break
	}
	if body == nil {
		return "", fmt.Errorf("%w: %s missing", domain.ErrExtractionFailure, docxBodyPart)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var doc docxDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", domain.ErrExtractionFailure, docxBodyPart, err)
	}

	lines := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		lines = append(lines, p.text())
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				parts := make([]string, 0, len(c.Paragraphs))
				for _, p := range c.Paragraphs {
					parts = append(parts, p.text())
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			lines = append(lines, strings.Join(cells, "\t"))
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
