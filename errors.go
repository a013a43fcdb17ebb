package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeStoreUnavailable      = "STORE_UNAVAILABLE"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeBadCredentials        = "BAD_CREDENTIALS"
	TextCodeEmailTaken            = "EMAIL_TAKEN"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeWeakPassword          = "WEAK_PASSWORD"
	TextCodeInvalidConfig         = "INVALID_CONFIG"
)

// Internal failure reasons. They reach logs and activity events only.
const (
	ReasonMissingCredential      = "missing_credential"
	ReasonTokenExpired           = "token_expired"
	ReasonTokenMalformed         = "token_malformed"
	ReasonTokenSignatureInvalid  = "token_signature_invalid"
	ReasonTokenTypeMismatch      = "token_type_mismatch"
	ReasonInvalidSubject         = "invalid_subject"
	ReasonUserNotFoundOrInactive = "user_not_found_or_inactive"
	ReasonNotSuperuser           = "not_superuser"
	ReasonStoreUnavailable       = "store_unavailable"
)

// Messages returned to callers of the authenticator. They are part of the
// public contract of the API and must stay stable.
const (
	MsgAuthenticationRequired = "authentication required"
	MsgInvalidOrExpiredToken  = "invalid or expired token"
	MsgInvalidIdentifier      = "invalid identifier in token"
	MsgUserNotFoundOrInactive = "user not found or inactive"
	MsgSuperuserRequired      = "superuser privileges required"
)

var (
	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = errors.New("password can't be an empty string")

	// ErrPasswordTooLong is returned when a password exceeds what bcrypt
	// can hash
	ErrPasswordTooLong = goerrors.New(errPasswordTooLong.Error(), goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeWeakPassword)

	// ErrTokenExpired is returned when now >= exp
	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeTokenExpired)

	// ErrTokenMalformed is returned for tokens that can not be parsed
	ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeTokenMalformed)

	// ErrInvalidSignature is returned when the signature does not verify
	ErrInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeTokenSignatureInvalid)

	// ErrInvalidToken is the token service failure for refresh redemption
	ErrInvalidToken = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeInvalidToken)

	// ErrStoreUnavailable is an infrastructure failure of the user store
	ErrStoreUnavailable = goerrors.New("user store unavailable", goerrors.CategoryInternal).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeStoreUnavailable)

	ErrBadCredentials = goerrors.New("Incorrect email or password", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeBadCredentials)

	ErrEmailTaken = goerrors.New("Email already registered", goerrors.CategoryConflict).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeEmailTaken)

	ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeUserNotFound)

	ErrCurrentPasswordIncorrect = goerrors.New("Current password is incorrect", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeBadCredentials)
)

// newUnauthenticated builds the outward 401 failure. reason is kept in
// metadata for logs only.
func newUnauthenticated(message, reason string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeUnauthenticated).
		WithMetadata(map[string]any{"reason": reason})
}

func invalidConfig(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidConfig)
}

func newForbidden(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeForbidden)
}

func storeUnavailable(err error, op string) *goerrors.Error {
	return withSource(goerrors.New(ErrStoreUnavailable.Message, goerrors.CategoryInternal), err).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeStoreUnavailable).
		WithMetadata(map[string]any{"operation": op})
}

// withSource keeps cause in the unwrap chain without folding its message
// into e, which Wrap does for *goerrors.Error causes
func withSource(e *goerrors.Error, cause error) *goerrors.Error {
	e.Source = cause
	return e
}

func reasonOf(err error) string {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.Metadata != nil {
		if reason, ok := richErr.Metadata["reason"].(string); ok {
			return reason
		}
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !errors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = errors.Unwrap(richErr)
	}
	return false
}

// IsUnauthenticated reports a 401 class authenticator failure
func IsUnauthenticated(err error) bool {
	return hasTextCode(err, TextCodeUnauthenticated)
}

// IsForbidden reports a 403 class authenticator failure
func IsForbidden(err error) bool {
	return hasTextCode(err, TextCodeForbidden)
}

// IsStoreUnavailable reports an infrastructure failure of the user store
func IsStoreUnavailable(err error) bool {
	return hasTextCode(err, TextCodeStoreUnavailable)
}

// IsInvalidToken reports a refresh redemption failure
func IsInvalidToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed)
}

// IsSignatureError will check for tokens with a bad signature
func IsSignatureError(err error) bool {
	return hasTextCode(err, TextCodeTokenSignatureInvalid)
}
