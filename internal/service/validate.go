package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/go-playground/validator/v10"
)

// User-facing validation messages.
const (
	MsgRequiredFields   = "Please fill in all required fields"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgPasswordTooLong  = "Password must be at most 72 characters"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs validator tags and converts failures into a
// domain.ValidationError. Missing fields win over format problems in the
// summary.
func validateStruct(op string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "failed to validate request")
	}

	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg := fieldMessage(fe)
		if _, seen := ve.Fields[fe.Namespace()]; !seen {
			ve.Fields[fe.Namespace()] = msg
		}
		if isRequiredTag(fe.Tag()) {
			ve.Summary = MsgRequiredFields
		} else if ve.Summary == "" {
			ve.Summary = msg
		}
	}
	return ve
}

func isRequiredTag(tag string) bool {
	return strings.HasPrefix(tag, "required")
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case isRequiredTag(fe.Tag()):
		return MsgRequiredFields
	case fe.Tag() == "email":
		return MsgInvalidEmail
	case fe.Tag() == "min" && fe.Field() == "password":
		return MsgPasswordTooShort
	case fe.Tag() == "max" && fe.Field() == "password":
		return MsgPasswordTooLong
	case fe.Tag() == "min" || fe.Tag() == "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case fe.Tag() == "max" || fe.Tag() == "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
