package capture

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/soyeahso/witness/internal/domain"
)

// inputValidate checks operation inputs before any I/O.
var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so errors match what MCP callers sent.
	inputValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = inputValidate.RegisterValidation("httpmethod", func(fl validator.FieldLevel) bool {
		return domain.IsKnownMethod(fl.Field().String())
	})
	_ = inputValidate.RegisterValidation("idsegment", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return strings.TrimSpace(v) != "" && !strings.ContainsAny(v, `_/\`)
	})
	_ = inputValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = inputValidate.RegisterValidation("sessionid", func(fl validator.FieldLevel) bool {
		return domain.ValidateSessionID(fl.Field().String()) == nil
	})
}

// validateInput maps the first violation to ErrInvalidArgument.
func validateInput(v any) error {
	err := inputValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			return fmt.Errorf("%w: %s failed %s=%s", domain.ErrInvalidArgument, field, fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %s failed %s", domain.ErrInvalidArgument, field, fe.Tag())
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
}
