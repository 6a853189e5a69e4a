package user

import "errors"

var (
	ErrUserNotFound       = errors.New("user: not found")
	ErrEmailTaken         = errors.New("user: email already registered")
	ErrInvalidCredentials = errors.New("user: invalid email or password")
	ErrInvalidEmail       = errors.New("user: invalid email address")
	ErrWeakPassword       = errors.New("user: password does not meet requirements")
	ErrPasswordLoginOnly  = errors.New("user: account has no password, use social sign-in")

	ErrInvalidToken = errors.New("user: invalid or already used token")
	ErrTokenExpired = errors.New("user: token has expired")

	// ErrNoCreditsRemaining is returned by the atomic credit deduction when
	// the balance is exhausted. Unlimited accounts never hit it.
	ErrNoCreditsRemaining = errors.New("user: no poem credits remaining")

	ErrAvatarTooLarge   = errors.New("user: avatar file exceeds the size limit")
	ErrAvatarNotAnImage = errors.New("user: avatar must be a jpeg, png, gif or webp image")
	ErrStoreUnavailable = errors.New("user: storage operation failed")
)
