package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the accepted wire format for calendar dates.
const DateLayout = "2006-01-02"

var (
	once     sync.Once
	validate *validator.Validate
	now      = time.Now
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// Messages renders field-keyed, human readable messages for a validation failure.
// Errors that are not ValidationErrors yield nil.
func Messages(err error) map[string]string {
	ve, ok := err.(ValidationErrors)
	if !ok || len(ve) == 0 {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, failure := range ve {
		if _, exists := out[failure.Field]; exists {
			continue
		}
		out[failure.Field] = message(failure)
	}
	return out
}

func message(failure ValidationError) string {
	field := strings.ReplaceAll(failure.Field, "_", " ")
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, failure.Param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, failure.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(failure.Param, " ", ", "))
	case "pastdate":
		return fmt.Sprintf("%s must be a valid date in the past", field)
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", field, strings.ReplaceAll(failure.Param, "_", " "))
	default:
		if failure.Param != "" {
			return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
		}
		return fmt.Sprintf("%s is invalid", field)
	}
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

// RegisterEnum registers a string rule backed by a membership predicate.
// Empty strings pass so that `required` stays responsible for presence.
func RegisterEnum(tag string, valid func(string) bool) error {
	return RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		if value == "" {
			return true
		}
		return valid(value)
	})
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

// startOfToday is midnight UTC of the current day. Dates parsed from DateLayout land
// on UTC midnight, so a date of today is never in the past.
func startOfToday() time.Time {
	y, m, d := now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isPastDate(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		value := strings.TrimSpace(field.String())
		if value == "" {
			return true
		}
		parsed, err := ParseDate(value)
		if err != nil {
			return false
		}
		return parsed.Before(startOfToday())
	case reflect.Struct:
		if t, ok := field.Interface().(time.Time); ok {
			return !t.IsZero() && t.Before(startOfToday())
		}
	}
	return false
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				name = fld.Tag.Get("form")
			}
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("pastdate", isPastDate)
	})
	return validate
}
