package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// check validates in against its struct tags. A malformed email address gets
// its own message; every other failure reports requiredMsg.
func check(in interface{}, requiredMsg string) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "email" {
				return validationError("Invalid email address")
			}
		}
	}
	return validationError(requiredMsg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
