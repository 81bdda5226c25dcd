package auth

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown email and a secret
	// mismatch so that login responses carry no enumeration signal.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already registered")

	// ErrInvalidToken indicates a malformed token or a failed
	// signature/expiry check.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenNotRecognized indicates a token with a valid signature that
	// has no matching stored record.
	ErrTokenNotRecognized = errors.New("auth: token not recognized")

	// ErrTokenRevoked indicates the stored record was revoked, either
	// explicitly or by rotation.
	ErrTokenRevoked = errors.New("auth: token revoked")

	// ErrTokenExpired indicates the stored expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrNotFound indicates a missing identity record.
	ErrNotFound = errors.New("auth: not found")

	// ErrInvalidInput indicates a validation failure on caller input.
	ErrInvalidInput = errors.New("auth: invalid input")
)
