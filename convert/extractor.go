package convert

import (
	"context"
	"errors"

	"github.com/SaiNageswarS/gizmo/mupdf"
)

// MuPDFExtractor extracts plain text from PDF files via MuPDF.
type MuPDFExtractor struct{}

func ProvideMuPDFExtractor() *MuPDFExtractor {
	return &MuPDFExtractor{}
}

func (e *MuPDFExtractor) Extract(ctx context.Context, filePath string) (string, error) {
	text, err := mupdf.ExtractText(ctx, filePath)
	if err != nil {
		return "", errors.New("failed to extract text: " + err.Error())
	}
	return text, nil
}
