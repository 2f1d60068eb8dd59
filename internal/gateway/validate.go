package gateway

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"summarai/internal/apperr"
)

// PasswordMismatch is reported when a signup confirmation differs.
const PasswordMismatch = "Passwords do not match"

// check validates a request before any network call is made.
func (c *Client) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request")
	}
	for _, fe := range verrs {
		switch {
		case fe.Tag() == "eqfield":
			return apperr.Validation(PasswordMismatch)
		case fe.Field() == "Email" && fe.Tag() == "required":
			return apperr.Validation("Email is required")
		case fe.Field() == "Email":
			return apperr.Validation("Email is not valid")
		case fe.Field() == "Password":
			return apperr.Validation("Password is required")
		}
	}
	return apperr.Validation("invalid request")
}
