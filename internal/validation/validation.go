// Package validation runs struct-tag validation and converts failures into
// apperr field issues keyed by the JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskmanager/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s and returns an *apperr.Error of kind Validation, or nil.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("validation failed", err)
	}

	issues := make([]apperr.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, apperr.FieldIssue{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return apperr.Validation(issues...)
}

// Var validates a single value against tag and reports failures under field.
func Var(field string, value any, tag string) []apperr.FieldIssue {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.FieldIssue{{Field: field, Message: err.Error()}}
	}

	issues := make([]apperr.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, apperr.FieldIssue{Field: field, Message: message(fe)})
	}
	return issues
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
