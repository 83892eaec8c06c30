package validate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed constraint, named by the field's JSON key.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (f FieldError) String() string {
	switch f.Tag {
	case "required":
		return f.Field + " is required"
	case "rut":
		return f.Field + " is not a valid RUT"
	case "hora":
		return f.Field + " must be HH:MM"
	case "datetime":
		return fmt.Sprintf("%s must match %s", f.Field, f.Param)
	case "gte":
		return fmt.Sprintf("%s must be >= %s", f.Field, f.Param)
	case "email":
		return f.Field + " is not a valid email"
	}
	return fmt.Sprintf("%s failed %s", f.Field, f.Tag)
}

// Errors is the list returned by Struct.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, f := range e {
		msgs[i] = f.String()
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the JSON names of the failing fields in order.
func (e Errors) Fields() []string {
	out := make([]string, len(e))
	for i, f := range e {
		out[i] = f.Field
	}
	return out
}

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

func structValidator() *validator.Validate {
	engineOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("rut", func(fl validator.FieldLevel) bool {
			return RUT(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("hora", func(fl validator.FieldLevel) bool {
			return Hora(fl.Field().String()) == nil
		})
		engine = v
	})
	return engine
}

// Struct validates s against its `validate` tags. It returns Errors on
// constraint failures and nil when s is valid.
func Struct(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Hora checks a wall-clock start time, "HH:MM" or "HH:MM:SS".
func Hora(s string) error {
	if _, err := time.Parse("15:04", s); err == nil {
		return nil
	}
	if _, err := time.Parse("15:04:05", s); err == nil {
		return nil
	}
	return fmt.Errorf("invalid time %q", s)
}
