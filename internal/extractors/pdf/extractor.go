// Package pdf extracts text from PDF files by shelling out to
// pdftotext (poppler-utils).
package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles PDF files via pdftotext.
type Extractor struct {
	runner driven.CommandRunner
}

// New creates a new PDF extractor using the given command runner.
func New(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Families returns the MIME families this extractor handles.
func (e *Extractor) Families() []domain.MIMEFamily {
	return []domain.MIMEFamily{domain.FamilyPDF}
}

// Extract writes the bytes to a temporary file and runs pdftotext
// over it. Pages come back separated by form feeds and are re-joined
// with single newlines in page order. A PDF whose every page yields
// empty text is reported as empty; a pdftotext failure as corrupt.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "recall-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", tmpPath, "-")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: pdftotext: %v", domain.ErrCorrupt, err)
	}

	// pdftotext separates pages with form feeds.
	pages := strings.Split(string(out), "\f")
	kept := make([]string, 0, len(pages))
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if page != "" {
			kept = append(kept, page)
		}
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: no page text", domain.ErrEmptyContent)
	}
	return strings.Join(kept, "\n"), nil
}
