package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundfKeepsKindAndMessage(t *testing.T) {
	err := NotFoundf("subject %d not found", 7)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "subject 7 not found", err.Error())
	assert.Equal(t, "subject 7 not found", Message(err))
}

func TestUnavailableWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable(cause)

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "store unavailable", Message(err))
	assert.Same(t, err, Unavailable(err), "already classified errors are not wrapped twice")
	assert.NoError(t, Unavailable(nil))
}

func TestValidationErrorFields(t *testing.T) {
	err := Invalid("status", "status must be one of present, late, absent, excused")

	var ve *ValidationError
	if assert.True(t, errors.As(err, &ve)) {
		assert.Equal(t, []FieldError{{Field: "status", Message: "status must be one of present, late, absent, excused"}}, ve.Fields)
	}
	assert.Equal(t, "validation failed", (&ValidationError{}).Error())
}
