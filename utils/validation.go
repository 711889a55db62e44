package utils

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON decodes the body into req and converts binding failures into a ValidationError.
func BindJSON(ctx *gin.Context, req interface{}) error {
	if err := ctx.ShouldBindJSON(req); err != nil {
		return AsValidationError(err)
	}
	return nil
}

// AsValidationError converts validator output into field messages.
func AsValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := &ValidationError{}
		for _, fe := range verrs {
			out.Add(fieldName(fe), fieldMessage(fe))
		}
		return out
	}
	if errors.Is(err, io.EOF) {
		return NewValidationError("body", "request body is required")
	}
	return NewValidationError("body", "invalid request payload")
}

func fieldName(fe validator.FieldError) string {
	// The json tag name is not available here; snake-case the struct field instead.
	// Acronyms stay together: VideoURL becomes video_url.
	runes := []rune(fe.Field())
	var b strings.Builder
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] < 'A' || runes[i-1] > 'Z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("The %s may not be greater than %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s must be one of: %s.", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s confirmation does not match.", strings.TrimSuffix(field, "_confirmation"))
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs `validate` struct tags on v.
func ValidateStruct(v interface{}) error {
	if err := structValidator.Struct(v); err != nil {
		return AsValidationError(err)
	}
	return nil
}
