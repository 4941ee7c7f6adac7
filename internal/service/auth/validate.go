package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/akuznetsov/taskboard/internal/apperrors"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Letters the password policy counts as special
const passwordSpecials = "!@#$%^&*(),.?\":{}|<>_-+=[]\\;'`~"

// NormalizeEmail brings an email to the canonical form used everywhere:
// for storage, uniqueness checks and rate limiter keys
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if len(email) > 255 || !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: %q", apperrors.ErrEmailInvalid, email)
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters
// with a lowercase letter, an uppercase letter, a digit and a special one
func ValidatePassword(password string) error {
	isLower := func(r rune) bool { return r >= 'a' && r <= 'z' }
	isUpper := func(r rune) bool { return r >= 'A' && r <= 'Z' }
	isDigit := func(r rune) bool { return r >= '0' && r <= '9' }

	switch {
	case len(password) < 8:
		return fmt.Errorf("%w: must be at least 8 characters", apperrors.ErrPasswordTooWeak)
	case !strings.ContainsFunc(password, isLower):
		return fmt.Errorf("%w: must contain at least one lowercase letter", apperrors.ErrPasswordTooWeak)
	case !strings.ContainsFunc(password, isUpper):
		return fmt.Errorf("%w: must contain at least one uppercase letter", apperrors.ErrPasswordTooWeak)
	case !strings.ContainsFunc(password, isDigit):
		return fmt.Errorf("%w: must contain at least one digit", apperrors.ErrPasswordTooWeak)
	case !strings.ContainsAny(password, passwordSpecials):
		return fmt.Errorf("%w: must contain at least one special character", apperrors.ErrPasswordTooWeak)
	}

	return nil
}
