package password

import "errors"

var (
	// ErrEmptyPassword is returned by Hash for empty input.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned by Hash for input above 1024 bytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedDigest wraps every parse failure of a stored argon2id digest.
	ErrMalformedDigest = errors.New("password: malformed argon2id digest")
)
