package relay

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so clients see the keys they sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFields maps a validator error to field -> reason
func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"payload": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "gte":
			fields[fe.Field()] = "must be greater than or equal to " + fe.Param()
		case "lte":
			fields[fe.Field()] = "must be less than or equal to " + fe.Param()
		case "max":
			fields[fe.Field()] = "must be at most " + fe.Param() + " characters long"
		default:
			fields[fe.Field()] = "failed on " + fe.Tag()
		}
	}
	return fields
}
