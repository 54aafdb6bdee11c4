package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/groupledger/internal/middleware"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks the validator tags of a request message.
func validateRequest(msg any) error {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", errInvalidArgument, err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = describeFieldError(fe)
	}
	return fmt.Errorf("%w: %s", errInvalidArgument, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), firstSegment(fe.Namespace())+".")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param() + " long"
	case "min":
		return field + " must have at least " + fe.Param() + " entries"
	case "len":
		return field + " must be exactly " + fe.Param() + " characters"
	default:
		return field + " failed " + fe.Tag() + " check"
	}
}

func firstSegment(ns string) string {
	head, _, _ := strings.Cut(ns, ".")
	return head
}

// callerID returns the authenticated user of the request.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", errUnauthenticated
	}
	return userID, nil
}
