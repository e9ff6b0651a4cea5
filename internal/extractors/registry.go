package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/extractors/docx"
	"github.com/custodia-labs/recall-cli/internal/extractors/image"
	"github.com/custodia-labs/recall-cli/internal/extractors/pdf"
	"github.com/custodia-labs/recall-cli/internal/extractors/plaintext"
)

// Registry dispatches extraction by MIME family.
type Registry struct {
	byFamily map[domain.MIMEFamily]driven.Extractor
}

// NewRegistry builds a registry from the given extractors. A later
// extractor claiming an already-registered family wins.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{byFamily: make(map[domain.MIMEFamily]driven.Extractor)}
	for _, e := range extractors {
		for _, f := range e.Families() {
			r.byFamily[f] = e
		}
	}
	return r
}

// Defaults returns a registry with the standard extractors. The
// runner executes pdftotext and tesseract for the PDF and image
// families.
func Defaults(runner driven.CommandRunner) *Registry {
	return NewRegistry(
		plaintext.New(),
		pdf.New(runner),
		docx.New(),
		image.New(runner),
	)
}

// Extract produces trimmed UTF-8 text from raw bytes of the given
// family. Inputs over the size limit are rejected before extraction
// begins. An empty extraction result is reported as
// domain.ErrEmptyContent.
func (r *Registry) Extract(ctx context.Context, family domain.MIMEFamily, data []byte) (string, error) {
	if len(data) > domain.MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrTooLarge, len(data), domain.MaxFileSize)
	}

	e, ok := r.byFamily[family]
	if !ok {
		return "", fmt.Errorf("%w: family %q", domain.ErrUnsupported, family)
	}

	text, err := e.Extract(ctx, data)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyContent
	}
	return text, nil
}
