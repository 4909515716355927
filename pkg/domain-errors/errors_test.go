package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("zero evidence")
	err := fmt.Errorf("evaluate: %w", Wrap(cause, CodeUnprocessable, "insufficient evidence"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeUnprocessable))
	assert.Equal(t, CodeUnprocessable, CodeOf(err))
	assert.Equal(t, "insufficient evidence", MessageOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.False(t, HasCode(err, CodeConflict))
	assert.Empty(t, MessageOf(err))
}
