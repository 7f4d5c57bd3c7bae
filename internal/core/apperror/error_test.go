package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationList(t *testing.T) {
	problems := []string{"customer identification is required", "at least one item is required"}
	err := NewValidationList(problems)

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Contains(t, err.Message, "customer identification is required; at least one item is required")

	problems[0] = "mutated"
	assert.Equal(t, "customer identification is required", err.Detail("errors").([]string)[0])
}

func TestAppError_Chain(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("submit: %w", NewRateLimitExceeded("create_invoice", 6).WithCause(cause))

	assert.True(t, IsRateLimitExceeded(err))
	assert.ErrorIs(t, err, cause)

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 6, appErr.Detail("attempts"))
	assert.Contains(t, appErr.Error(), "caused by: connection reset")
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("product", "ABC")))
	assert.True(t, IsValidation(NewValidation("bad")))
	assert.False(t, IsValidation(errors.New("plain")))
	assert.False(t, IsAppError(nil))
	assert.True(t, HasCode(NewInternal(errors.New("x")), CodeInternal))

	var nilErr *AppError
	assert.Nil(t, nilErr.Detail("x"))
}
