package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// buildDocx assembles a minimal DOCX archive around document.xml.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

const twoParagraphDoc = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestFamilies(t *testing.T) {
	e := New()
	assert.Equal(t, []domain.MIMEFamily{domain.FamilyDocx}, e.Families())
}

func TestExtract_ParagraphOrderAndBoundaries(t *testing.T) {
	e := New()

	text, err := e.Extract(context.Background(), buildDocx(t, twoParagraphDoc))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", text)
}

func TestExtract_NotAZip(t *testing.T) {
	e := New()

	_, err := e.Extract(context.Background(), []byte("plain text, not a zip"))
	assert.ErrorIs(t, err, domain.ErrCorrupt)
}

func TestExtract_MissingDocumentPart(t *testing.T) {
	e := New()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = e.Extract(context.Background(), buf.Bytes())
	assert.ErrorIs(t, err, domain.ErrCorrupt)
}

func TestExtract_EmptyDocument(t *testing.T) {
	e := New()

	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body></w:body>
</w:document>`

	_, err := e.Extract(context.Background(), buildDocx(t, doc))
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}
