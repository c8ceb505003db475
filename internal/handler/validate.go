package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/auth"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

const minPasswordLength = 8

// REQUEST VALIDATION:
// Request structs carry `validate` tags checked by go-playground/validator.
// The first failing field becomes an apperror.ValidationFailed, named by
// its JSON key so the client sees the name it sent.
//
// The services validate again where the rule is a business rule (event
// text length, date and time layouts). The tags here reject bad input
// before any service or storage work starts.

// Validator wraps a configured *validator.Validate.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the custom rules and the JSON field-name lookup.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Only fails for an empty or reserved tag name.
	if err := v.RegisterValidation("strongpassword", strongPassword); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(atLeastOneField, updateEventRequest{})

	return &Validator{v: v}
}

// Struct validates s and converts the first failure to an AppError.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating request: %w", err)
	}
	fe := verrs[0]
	return apperror.ValidationFailed(fe.Field(), message(fe))
}

// EventID checks a path parameter is a UUID.
func (val *Validator) EventID(id string) error {
	if err := val.v.Var(id, "required,uuid"); err != nil {
		return apperror.ValidationFailed("eventId", "eventId must be a valid UUID")
	}
	return nil
}

// strongPassword requires upper, lower, digit and symbol within
// [minPasswordLength, auth.MaxPasswordBytes] bytes.
func strongPassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	if len(pw) < minPasswordLength || len(pw) > auth.MaxPasswordBytes {
		return false
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func atLeastOneField(sl validator.StructLevel) {
	req := sl.Current().Interface().(updateEventRequest)
	if req.Name == nil && req.Date == nil && req.Time == nil && req.Description == nil {
		sl.ReportError(req, "body", "body", "atleastone", "")
	}
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		if fe.Param() == "15:04" {
			return field + " must be in hh:mm format"
		}
		return field + " must be in yyyy-mm-dd format"
	case "strongpassword":
		return fmt.Sprintf("%s must be %d-%d characters and contain upper and lower case letters, a digit and a symbol",
			field, minPasswordLength, auth.MaxPasswordBytes)
	case "atleastone":
		return "at least one field must be provided"
	default:
		return field + " is invalid"
	}
}

// decodeJSON reads a single JSON object from r into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.BadRequest("request body must not be empty")
		case errors.As(err, &maxErr):
			return apperror.BadRequest("request body too large")
		default:
			return apperror.BadRequest("invalid JSON body")
		}
	}
	if dec.More() {
		return apperror.BadRequest("request body must contain a single JSON object")
	}
	return nil
}
