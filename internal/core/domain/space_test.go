package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpaceValidate(t *testing.T) {
	tests := []struct {
		name    string
		space   Space
		wantErr error
	}{
		{
			name:  "valid space",
			space: Space{UserID: "u1", Name: "Goa Trip"},
		},
		{
			name:  "valid with description",
			space: Space{UserID: "u1", Name: "Trip", Description: "December travel plans"},
		},
		{
			name:    "missing user id",
			space:   Space{Name: "Trip"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "empty name",
			space:   Space{UserID: "u1", Name: ""},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "whitespace name",
			space:   Space{UserID: "u1", Name: "   "},
			wantErr: ErrInvalidInput,
		},
		{
			name:  "name at limit",
			space: Space{UserID: "u1", Name: strings.Repeat("a", MaxSpaceNameLength)},
		},
		{
			name:    "name over limit",
			space:   Space{UserID: "u1", Name: strings.Repeat("a", MaxSpaceNameLength+1)},
			wantErr: ErrInvalidInput,
		},
		{
			name:  "description at limit",
			space: Space{UserID: "u1", Name: "Trip", Description: strings.Repeat("d", MaxSpaceDescriptionLength)},
		},
		{
			name:    "description over limit",
			space:   Space{UserID: "u1", Name: "Trip", Description: strings.Repeat("d", MaxSpaceDescriptionLength+1)},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.space.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSpaceValidate_MultibyteName(t *testing.T) {
	// Length limits count runes, not bytes.
	space := Space{UserID: "u1", Name: strings.Repeat("日", MaxSpaceNameLength)}
	assert.NoError(t, space.Validate())
}
