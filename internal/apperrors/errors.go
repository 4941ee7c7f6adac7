package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned for every credential failure on login: unknown email, wrong
	// password or disabled account. Callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Returned for every access token failure: malformed, expired, bad
	// signature, missing claims, unknown or disabled user.
	ErrInvalidAccessToken = errors.New("invalid access token")

	// External form of any refresh failure. The precise cause stays in logs.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token is revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrEmailInvalid    = errors.New("email format is invalid")
	ErrPasswordTooWeak = errors.New("password is too weak")

	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskInvalid          = errors.New("invalid task data")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationInvalid  = errors.New("invalid conversation data")
	ErrMessageInvalid       = errors.New("invalid message data")

	// Entity exists but belongs to another user
	ErrAccessDenied = errors.New("access denied")
)

// RateLimitError is returned when login attempts from a key exceed the
// sliding window. RetryAfter tells when the next attempt may succeed.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}
