// Package validate holds the form rules shared by the HTTP layer and the
// account and booking services.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"computer-booking-backend/internal/rooms"
)

// Errors maps a form field to its validation messages. The zero value is empty.
type Errors map[string][]string

// Add appends a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Error implements error.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[f], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil returns nil when there are no messages, so callers can return it as an error.
func (e Errors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

const maxPasswordBytes = 72

var usernameRe = regexp.MustCompile(`^[a-z]+\.[a-z]+$`)

// Rules validates structs tagged with `binding:"..."`. It satisfies gin's
// binding.StructValidator so the same rules apply to bound requests.
type Rules struct {
	v           *validator.Validate
	emailDomain string
	emailRe     *regexp.Regexp
}

// NewRules builds the validator for the given school e-mail domain.
func NewRules(emailDomain string) *Rules {
	r := &Rules{
		v:           validator.New(),
		emailDomain: emailDomain,
		emailRe:     regexp.MustCompile(`^[a-z]+\.[a-z]+@` + regexp.QuoteMeta(emailDomain) + `$`),
	}
	r.v.SetTagName("binding")
	r.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration of a fixed tag with a non-nil func cannot fail.
	_ = r.v.RegisterValidation("schoolusername", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = r.v.RegisterValidation("schoolemail", func(fl validator.FieldLevel) bool {
		return r.emailRe.MatchString(fl.Field().String())
	})
	_ = r.v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// bcrypt only hashes the first 72 bytes and rejects anything longer.
	_ = r.v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	_ = r.v.RegisterValidation("room", func(fl validator.FieldLevel) bool {
		_, ok := rooms.Lookup(fl.Field().String())
		return ok
	})
	_ = r.v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		_, err := rooms.ParsePeriod(fl.Field().String())
		return err == nil
	})
	return r
}

// ValidateStruct validates obj when it is a struct or a pointer to one.
func (r *Rules) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}
	return r.v.Struct(obj)
}

// Engine returns the underlying validator.
func (r *Rules) Engine() any {
	return r.v
}

// Check validates obj and returns the failures as Errors, or nil.
func (r *Rules) Check(obj any) error {
	if err := r.ValidateStruct(obj); err != nil {
		return r.Translate(err)
	}
	return nil
}

// Translate converts a binding or validation error into user-facing Errors.
// Errors that are not field validation failures (malformed bodies) are
// reported under the "form" key.
func (r *Rules) Translate(err error) Errors {
	out := Errors{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		var already Errors
		if errors.As(err, &already) {
			return already
		}
		out.Add("form", "Invalid form data.")
		return out
	}
	for _, fe := range ve {
		out.Add(fe.Field(), r.message(fe))
	}
	return out
}

func (r *Rules) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required."
	case "schoolusername":
		return "Username should be first name followed by dot (.) followed by surname (lowercase)."
	case "email":
		return "Invalid email address."
	case "schoolemail":
		return fmt.Sprintf("Email should be in the format 'first_name.surname@%s'.", r.emailDomain)
	case "min":
		return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "bcryptlen":
		return fmt.Sprintf("Field cannot be longer than %d bytes.", maxPasswordBytes)
	case "eqfield":
		return "Passwords must be equal."
	case "room", "period", "oneof":
		return "Not a valid choice."
	default:
		return fmt.Sprintf("Failed the %q rule.", fe.Tag())
	}
}
