package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clockInPayload struct {
	StudentID  string  `validate:"required,uuid"`
	ContactURL string  `validate:"omitempty,email"`
	TheoryPct  float64 `validate:"gte=0,lte=100"`
	Method     string  `validate:"oneof=cash card ach"`
}

func TestClonedSentinelsStillMatch(t *testing.T) {
	err := fmt.Errorf("clock out: %w", Clone(ErrInvalidState, "session already closed"))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "session already closed", FromError(err).Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestValidationDetails(t *testing.T) {
	err := validator.New().Struct(clockInPayload{StudentID: "", ContactURL: "nope", TheoryPct: 140, Method: "bitcoin"})
	require.Error(t, err)

	appErr := Validation(err, "invalid clock-in payload")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)

	byField := map[string]FieldError{}
	for _, d := range appErr.Details {
		byField[d.Field] = d
	}
	require.Len(t, byField, 4)
	assert.Equal(t, "is required", byField["student_id"].Message)
	assert.Equal(t, "must be a valid email address", byField["contact_url"].Message)
	assert.Equal(t, "must be at most 100", byField["theory_pct"].Message)
	assert.Equal(t, "must be one of: cash, card, ach", byField["method"].Message)
}

func TestValidationWithoutValidatorErrors(t *testing.T) {
	appErr := Validation(fmt.Errorf("unexpected EOF"), "invalid payload")
	assert.Empty(t, appErr.Details)
	assert.Equal(t, "invalid payload", appErr.Message)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "student_id", snakeCase("StudentID"))
	assert.Equal(t, "theory_override_pct", snakeCase("TheoryOverridePct"))
	assert.Equal(t, "gpa", snakeCase("GPA"))
	assert.Equal(t, "sap_status", snakeCase("SAPStatus"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain")))
}
