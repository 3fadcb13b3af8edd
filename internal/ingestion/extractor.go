package ingestion

import (
	"context"
	"io"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/pkg/textextract"
)

// TextExtractor turns a stored file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// PDFExtractor reads PDF files. Anything else is a content error.
type PDFExtractor struct{}

func (PDFExtractor) Extract(_ context.Context, r io.ReaderAt, size int64) (string, error) {
	head := make([]byte, 5)
	if n, _ := r.ReadAt(head, 0); !textextract.IsPDF(head[:n]) {
		return "", errkind.Contentf("file is not a PDF")
	}

	text, err := textextract.ExtractPDF(r, size)
	if err != nil {
		return "", errkind.E(errkind.Content, "extract text", err)
	}
	return text, nil
}
