package pdfquiz

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText reads the plain text of at most maxPages pages
func ExtractPDFText(r io.ReaderAt, size int64, maxPages int) (string, PDFInfo, error) {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", PDFInfo{}, fmt.Errorf("failed to open PDF: %w", err)
	}

	total := reader.NumPage()
	pagesToRead := min(maxPages, total)

	var sb strings.Builder
	for i := 1; i <= pagesToRead; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", PDFInfo{}, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		sb.WriteString(text)
	}

	info := PDFInfo{
		TotalPages:   total,
		PagesRead:    pagesToRead,
		WasTruncated: total > maxPages,
	}
	return strings.TrimSpace(sb.String()), info, nil
}
