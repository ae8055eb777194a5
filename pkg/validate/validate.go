package validate

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/Dias221467/ZielManager/pkg/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	// Names and titles end up in email headers, so they must stay on one line.
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	return v
}

// Struct validates v against its `validate` tags and returns an
// invalid-argument error listing every failing field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.CodeValidation, err, "validation failed")
	}

	details := make(map[string]string, len(errs))
	var fields []string
	for _, fe := range errs {
		details[fe.Namespace()] = message(fe)
		fields = append(fields, fmt.Sprintf("%s %s", fe.Field(), message(fe)))
	}
	return apperr.New(apperr.CodeValidation, strings.Join(fields, "; ")).WithDetails(details)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "nocontrol":
		return "must not contain control characters"
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
