// Package image extracts text from images by shelling out to the
// tesseract OCR engine.
package image

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

// Extractor handles PNG and JPEG images via tesseract.
type Extractor struct {
	runner driven.CommandRunner
}

// New creates a new OCR extractor using the given command runner.
func New(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Families returns the MIME families this extractor handles.
func (e *Extractor) Families() []domain.MIMEFamily {
	return []domain.MIMEFamily{domain.FamilyImage}
}

// Extract writes the bytes to a temporary file and runs tesseract
// over it, producing a single text blob. An image with no
// recognisable text is reported as empty; a tesseract failure as
// corrupt. OCR output is only stable under retries within a single
// process.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "recall-*.img")
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

	out, err := e.runner.Run(ctx, "tesseract", tmpPath, "stdout")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: tesseract: %v", domain.ErrCorrupt, err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("%w: no text recognised", domain.ErrEmptyContent)
	}
	return text, nil
}
