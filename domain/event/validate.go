package event

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"chat-relay/errors"
)

var validate = validator.New()

// Validate applies the payload's struct tags and wraps any violation in the
// boundary validation error, so handlers never see a half-formed payload.
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}
