package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatValidationError turns validator errors from gin's binding layer into
// a single human-readable message for API responses.
func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field %s is required", fieldErr.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("field %s must be one of: %s", fieldErr.Field(), fieldErr.Param()))
		case "email":
			messages = append(messages, fmt.Sprintf("field %s must be a valid email", fieldErr.Field()))
		default:
			messages = append(messages, fmt.Sprintf("field %s failed %s validation", fieldErr.Field(), fieldErr.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}
