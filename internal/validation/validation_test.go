package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/apperr"
)

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Due      string `json:"prazo" validate:"omitempty,datetime=2006-01-02"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(sample{Email: "a@x.com", Password: "secret1", Due: "2025-02-28"}))
}

func TestStructIssuesUseJSONNames(t *testing.T) {
	err := Struct(sample{Email: "not-an-email", Password: "123", Due: "2025-02-30"})
	require.Error(t, err)

	appErr := apperr.From(err)
	require.Equal(t, apperr.KindValidation, appErr.Kind)

	fields := map[string]string{}
	for _, issue := range appErr.Issues {
		fields[issue.Field] = issue.Message
	}
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 6 characters", fields["password"])
	assert.Equal(t, "must be a date in YYYY-MM-DD format", fields["prazo"])
}

func TestStructRequired(t *testing.T) {
	err := Struct(sample{})
	appErr := apperr.From(err)
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Issues, 2)
}

func TestVar(t *testing.T) {
	assert.Empty(t, Var("prazo", "2024-12-31", "datetime=2006-01-02"))

	issues := Var("prazo", "31/12/2024", "datetime=2006-01-02")
	require.Len(t, issues, 1)
	assert.Equal(t, "prazo", issues[0].Field)
	assert.Equal(t, "must be a date in YYYY-MM-DD format", issues[0].Message)

	issues = Var("titulo", "", "required")
	require.Len(t, issues, 1)
	assert.Equal(t, "is required", issues[0].Message)
}
