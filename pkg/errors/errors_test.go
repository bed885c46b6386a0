package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorPassesTypedErrorsThrough(t *testing.T) {
	wrapped := fmt.Errorf("enroll: %w", Clone(ErrDuplicateEnrollment, ""))

	got := FromError(wrapped)

	assert.Equal(t, "DUPLICATE_ENROLLMENT", got.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Status)
}

func TestFromErrorMasksUnknownErrors(t *testing.T) {
	got := FromError(errors.New("pq: connection refused"))

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, ErrInternal.Message, got.Message)
}

func TestClonedErrorsMatchTemplate(t *testing.T) {
	clone := Clone(ErrDuplicateGrade, "grade exists")

	assert.True(t, errors.Is(clone, ErrDuplicateGrade))
	assert.False(t, errors.Is(clone, ErrDuplicateSubmission))
	assert.Equal(t, "grade exists", clone.Message)
	assert.Equal(t, "grade already exists for this assignment and student", ErrDuplicateGrade.Message)
}
