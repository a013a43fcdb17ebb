package auth

import (
	"errors"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// MinPasswordLength is the shortest password accepted, in characters
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit
	MaxPasswordBytes = 72
)

var (
	errPasswordTooShort  = errors.New("Password must be at least 8 characters long")
	errPasswordTooLong   = errors.New("Password must be at most 72 bytes long")
	errPasswordNoUpper   = errors.New("Password must contain at least one uppercase letter")
	errPasswordNoLower   = errors.New("Password must contain at least one lowercase letter")
	errPasswordNoDigit   = errors.New("Password must contain at least one digit")
	errPasswordNotString = errors.New("Password must be a string")
)

// PasswordStrength is an ozzo rule enforcing the password policy
var PasswordStrength = validation.By(checkPasswordStrength)

// ValidatePasswordStrength reports the first policy rule p breaks
func ValidatePasswordStrength(p string) error {
	if err := validation.Validate(p, PasswordStrength); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeWeakPassword)
	}
	return nil
}

func checkPasswordStrength(value any) error {
	p, ok := value.(string)
	if !ok {
		return errPasswordNotString
	}

	if utf8.RuneCountInString(p) < MinPasswordLength {
		return errPasswordTooShort
	}

	if len(p) > MaxPasswordBytes {
		return errPasswordTooLong
	}

	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case !upper:
		return errPasswordNoUpper
	case !lower:
		return errPasswordNoLower
	case !digit:
		return errPasswordNoDigit
	}

	return nil
}
