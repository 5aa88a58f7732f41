package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid indicates a payload failed field-level validation.
var ErrInvalid = errors.New("validation: invalid payload")

// Validator checks request payloads against their struct validation tags.
type Validator struct {
	validate *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns nil for a well-formed payload, or ErrInvalid wrapped with
// per-field detail.
func (v *Validator) Validate(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	details := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		details = append(details, fmt.Sprintf("%s violates %q", fieldError.Field(), fieldError.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(details, "; "))
}
