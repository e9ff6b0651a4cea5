// Package docx extracts text from DOCX files.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles DOCX files.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Families returns the MIME families this extractor handles.
func (e *Extractor) Families() []domain.MIMEFamily {
	return []domain.MIMEFamily{domain.FamilyDocx}
}

// Extract concatenates paragraph text from word/document.xml in
// document order, preserving paragraph boundaries as single newlines.
// Bytes that do not open as a ZIP archive, or an archive without a
// document part, are reported as corrupt.
func (e *Extractor) Extract(_ context.Context, data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a zip archive", domain.ErrCorrupt)
	}

	content, err := documentPart(reader)
	if err != nil {
		return "", err
	}

	text := parseDocumentXML(content)
	if text == "" {
		return "", fmt.Errorf("%w: no paragraph text", domain.ErrEmptyContent)
	}
	return text, nil
}

// documentPart returns the bytes of word/document.xml.
func documentPart(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable document part", domain.ErrCorrupt)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable document part", domain.ErrCorrupt)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: missing word/document.xml", domain.ErrCorrupt)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts text content from the document XML.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}
