package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps every decoded JSON request body.
const MaxBodyBytes = 1 << 20

// ValidationError is returned by DecodeJSON when the body is unreadable or
// fails its struct tags. Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report field names as they appear on the wire.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON reads a single JSON object from r into dst and validates it
// using its `validate` struct tags. Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ValidationError{Message: "request body is required"}
		}
		return &ValidationError{Message: fmt.Sprintf("malformed JSON body: %v", err)}
	}
	if dec.More() {
		return &ValidationError{Message: "request body must contain a single JSON object"}
	}
	return Validate(dst)
}

// Validate checks v against its struct tags and converts the first failure
// into a ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("httpx: validate: %w", err)
	}

	first := verrs[0]
	field := first.Field()
	var msg string
	switch first.Tag() {
	case "required":
		msg = fmt.Sprintf("field '%s' is required", field)
	case "email":
		msg = fmt.Sprintf("field '%s' must be a valid email address", field)
	case "min":
		msg = fmt.Sprintf("field '%s' must be at least %s characters long", field, first.Param())
	case "max":
		msg = fmt.Sprintf("field '%s' must be at most %s characters long", field, first.Param())
	case "len":
		msg = fmt.Sprintf("field '%s' must be exactly %s characters long", field, first.Param())
	case "numeric":
		msg = fmt.Sprintf("field '%s' must contain only digits", field)
	case "oneof":
		msg = fmt.Sprintf("field '%s' must be one of: %s", field, first.Param())
	default:
		msg = fmt.Sprintf("field '%s' failed validation on '%s'", field, first.Tag())
	}
	return &ValidationError{Field: field, Message: msg}
}
