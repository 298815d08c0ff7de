// Package resume extracts plain text from candidate-submitted resume
// files so the gatekeeper prompt sees text, not bytes.
package resume

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	pdfmodel "github.com/unidoc/unipdf/v3/model"

	"github.com/okian/sift/pkg/logger"
)

// Truncation limits for non-PDF payloads and the raw-bytes fallback.
const (
	maxPlainBytes    = 10000
	maxFallbackBytes = 5000
)

// Text returns the best-effort plain text for a resume file. Plain
// text passes through, PDFs go through page-by-page extraction, and
// anything else is truncated raw bytes. A PDF that defeats extraction
// degrades to truncated raw bytes rather than failing the intake.
func Text(data []byte, filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}

	switch ext {
	case "txt", "md":
		return string(truncate(data, maxPlainBytes))
	case "pdf":
		text, err := fromPDF(data)
		if err != nil {
			logger.Get().Named("resume").Warn(context.Background(), "pdf extraction failed, keeping raw bytes",
				logger.String("filename", filename),
				logger.Error(err),
			)
			return string(truncate(data, maxFallbackBytes))
		}
		return text
	default:
		return string(truncate(data, maxPlainBytes))
	}
}

func truncate(data []byte, limit int) []byte {
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

// fromPDF walks every page, skipping pages that fail individually so
// one broken page does not lose the rest of the document.
func fromPDF(data []byte) (string, error) {
	reader, err := pdfmodel.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	pages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("page count: %w", err)
	}
	if pages == 0 {
		return "", ErrEmptyPDF
	}

	var b strings.Builder
	extracted := false
	for i := 1; i <= pages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil || pageText == "" {
			continue
		}
		extracted = true
		b.WriteString(pageText)
		b.WriteString("\n\n")
	}
	if !extracted {
		return "", ErrNoText
	}
	return strings.TrimSpace(b.String()), nil
}
