// Package plaintext extracts text from plain UTF-8 files.
package plaintext

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text files.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Families returns the MIME families this extractor handles.
func (e *Extractor) Families() []domain.MIMEFamily {
	return []domain.MIMEFamily{domain.FamilyPlain}
}

// Extract decodes the bytes as UTF-8. A failed decode is reported as
// corrupt; no further processing is applied.
func (e *Extractor) Extract(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", domain.ErrCorrupt)
	}
	// string conversion copies, so the caller's buffer is not retained.
	return string(data), nil
}
