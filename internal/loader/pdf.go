package loader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"pdfqa/internal/apperr"
	"pdfqa/internal/document"
)

var licenseOnce sync.Once
var licenseErr error

// PDFExtractor extracts page text from PDF files with UniPDF.
type PDFExtractor struct{}

// NewPDFExtractor registers the UniPDF metered license key once per process.
// UniPDF extracts no text without a license, so an empty key is a configuration error.
func NewPDFExtractor(licenseKey string) (*PDFExtractor, error) {
	if strings.TrimSpace(licenseKey) == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "UNIDOC_LICENSE_KEY is required to extract PDF text")
	}
	licenseOnce.Do(func() {
		licenseErr = license.SetMeteredKey(licenseKey)
	})
	if licenseErr != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, licenseErr, "failed to set UniPDF license key")
	}
	return &PDFExtractor{}, nil
}

// Extract returns the text of every page, pages separated by a blank line.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (Extracted, error) {
	f, err := os.Open(path)
	if err != nil {
		return Extracted{}, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return Extracted{}, fmt.Errorf("failed to read pdf: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return Extracted{}, fmt.Errorf("failed to count pages: %w", err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return Extracted{}, err
		}

		page, err := pdfReader.GetPage(i)
		if err != nil {
			return Extracted{}, fmt.Errorf("failed to get page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return Extracted{}, fmt.Errorf("failed to create extractor for page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return Extracted{}, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return Extracted{
		Text:     strings.Join(pages, "\n\n"),
		Metadata: map[string]any{document.MetaPages: numPages},
	}, nil
}
