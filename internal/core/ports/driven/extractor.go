package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// Extractor converts raw file bytes of one or more MIME families into
// canonical UTF-8 text. Each extractor handles specific families
// (e.g., PDF, DOCX, images via OCR).
//
// Failures are typed through the domain error set: ErrCorrupt,
// ErrEmptyContent, ErrUnsupported, ErrTooLarge. Extractors must be
// deterministic for byte-identical input (OCR only within a process)
// and must not retain the caller's buffer after return.
type Extractor interface {
	// Families returns the MIME families this extractor handles.
	Families() []domain.MIMEFamily

	// Extract produces trimmed UTF-8 text from raw bytes.
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorRegistry dispatches extraction by MIME family and enforces
// the size limit before extraction begins.
type ExtractorRegistry interface {
	Extract(ctx context.Context, family domain.MIMEFamily, data []byte) (string, error)
}

// CommandRunner executes an external command and returns its stdout.
// Extraction adapters that shell out (pdftotext, tesseract) take a
// CommandRunner so tests can substitute a double.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
