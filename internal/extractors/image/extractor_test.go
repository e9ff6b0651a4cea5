package image

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
}

func (m *mockRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.output, m.err
}

func TestFamilies(t *testing.T) {
	e := New(&mockRunner{})
	assert.Equal(t, []domain.MIMEFamily{domain.FamilyImage}, e.Families())
}

func TestExtract(t *testing.T) {
	e := New(&mockRunner{output: []byte("  Receipt total: 18,500\n")})

	text, err := e.Extract(context.Background(), []byte("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Receipt total: 18,500", text)
}

func TestExtract_NoTextRecognised(t *testing.T) {
	e := New(&mockRunner{output: []byte("   \n")})

	_, err := e.Extract(context.Background(), []byte("png bytes"))
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestExtract_RunnerFailureIsCorrupt(t *testing.T) {
	e := New(&mockRunner{err: errors.New("Error in pixReadStream")})

	_, err := e.Extract(context.Background(), []byte("junk"))
	assert.ErrorIs(t, err, domain.ErrCorrupt)
}
