// Package extract turns uploaded documents into the canonical text that gets
// embedded and indexed.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MIMEType is the only document type accepted for ingestion.
const MIMEType = "application/pdf"

var (
	// ErrEmptyContent is returned when normalisation leaves nothing to index.
	ErrEmptyContent = errors.New("document contains no extractable text")
	// ErrNotPDF is returned when the bytes do not carry a PDF header.
	ErrNotPDF = errors.New("content is not a PDF document")
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize collapses every whitespace run into a single space and trims the
// result. An empty result is ErrEmptyContent.
func Normalize(raw string) (string, error) {
	clean := strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
	if clean == "" {
		return "", ErrEmptyContent
	}
	return clean, nil
}

// IsPDF sniffs the "%PDF-" magic header.
func IsPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// pageSource is the slice of *pdf.Reader the extractor needs.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int { return p.r.NumPage() }

func (p pdfPages) PageText(num int) (text string, err error) {
	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()
	page := p.r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// PDFExtractor reads the text of a staged PDF file page by page.
type PDFExtractor struct {
	// OnPageError is called for pages whose text could not be read. Optional.
	OnPageError func(page int, err error)
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns the concatenated text of every page in order. Pages that
// yield no text, or fail to decode, contribute an empty string.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	head := make([]byte, 5)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open staged document: %w", err)
	}
	n, _ := f.Read(head)
	f.Close()
	if !IsPDF(head[:n]) {
		return "", ErrNotPDF
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}
	defer file.Close()

	return e.extractPages(ctx, pdfPages{r: reader})
}

func (e *PDFExtractor) extractPages(ctx context.Context, src pageSource) (string, error) {
	var sb strings.Builder
	for i := 1; i <= src.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := src.PageText(i)
		if err != nil {
			if e.OnPageError != nil {
				e.OnPageError(i, err)
			}
			continue
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
