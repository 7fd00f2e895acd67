package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(Validation("bad input")))
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("missing")))
	assert.Equal(t, CodeNotEligible, CodeOf(NotEligible("not yet")))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestIs(t *testing.T) {
	err := Forbidden("nope")
	assert.True(t, Is(err, CodeForbidden))
	assert.False(t, Is(err, CodeNotFound))

	// Codes survive wrapping.
	wrapped := fmt.Errorf("handling request: %w", err)
	assert.True(t, Is(wrapped, CodeForbidden))
}

func TestInternal_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Internal("failed to store message", cause)

	assert.True(t, Is(err, CodeInternal))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to store message")
	assert.Contains(t, err.Error(), "disk full")
}
