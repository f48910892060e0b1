package services

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/phone"
)

// validationError turns ozzo field errors into the API validation error.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for field, fe := range fieldErrs {
			details[field] = fe.Error()
		}
		return apperr.ErrValidation.WithDetails(details)
	}
	return apperr.ErrValidation.WithMessage("Validation error: %v", err)
}

var validPhone = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := phone.Parse(s); err != nil {
		return fmt.Errorf("must be a valid phone number")
	}
	return nil
})
