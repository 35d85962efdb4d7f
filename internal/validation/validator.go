package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validatorengine "github.com/go-playground/validator/v10"

	"event-invitations/internal/apperrors"
)

var engine = newEngine(useJSONNames)

func newEngine(configure ...func(*validatorengine.Validate)) *validatorengine.Validate {
	ve := validatorengine.New()
	for _, f := range configure {
		f(ve)
	}
	return ve
}

// useJSONNames reports fields by their JSON name so errors match request bodies
func useJSONNames(ve *validatorengine.Validate) {
	ve.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// Struct validates input using its `validate` tags and reports the first
// failing field as a ValidationError.
func Struct(input any) error {
	err := engine.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validatorengine.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}

	fe := fieldErrs[0]
	field := fe.Field()
	return apperrors.Validation(field, "%s %s", field, describe(fe))
}

func describe(fe validatorengine.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match layout " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
