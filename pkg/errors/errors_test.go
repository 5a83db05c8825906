package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/narwhalmedia/simulcast/pkg/errors"
)

func TestTypeChecks(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", apperrors.NotFound("anime"), apperrors.IsNotFound},
		{"skip", apperrors.Skip("trailer %s", "x"), apperrors.IsSkip},
		{"not eligible is skip", fmt.Errorf("crunchyroll: %w", apperrors.ErrNotEligible), apperrors.IsSkip},
		{"transient", apperrors.Transient("fetch", fmt.Errorf("503")), apperrors.IsTransient},
		{"configuration", apperrors.Configuration("missing payload"), apperrors.IsConfiguration},
		{"wrapped conflict", fmt.Errorf("create: %w", apperrors.Conflict("exists")), apperrors.IsConflict},
		{"driver duplicate", fmt.Errorf("UNIQUE constraint failed: animes.slug"), apperrors.IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, apperrors.ErrorType(""), apperrors.TypeOf(fmt.Errorf("boom")))
	assert.False(t, apperrors.IsSkip(nil))
}

func TestAppError_Message(t *testing.T) {
	err := apperrors.Wrap(apperrors.ErrorTypeInternal, "recompute", fmt.Errorf("db closed"))
	assert.Equal(t, "INTERNAL: recompute: db closed", err.Error())
}
